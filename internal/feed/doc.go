// Package feed delivers committed ledger events to observers.
//
// Broadcaster fans events out to in-process subscribers, Handler streams
// them over a websocket, and ArchiveWriter exports them as zstd-compressed
// JSON lines. None of these feed anything back into the ledger.
package feed
