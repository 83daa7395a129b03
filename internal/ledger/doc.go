// Package ledger implements the CivBuilder encrypted-state ledger: access
// control, civilization and action records, homomorphic world aggregates
// and the decryption request broker.
//
// Every exported mutation is one atomic operation. The ledger holds a mutex
// for the duration of the operation and runs it inside a single store
// transaction; any error rolls back every write, including the events the
// operation emitted. Committed events are handed to the Publisher only
// after the transaction commits.
//
// Caller identity is an explicit argument. Callback entry points
// (HandleCivDecryption and friends) take no identity at all: the engine's
// proof is the only authorization, so anyone holding a valid proof may
// deliver it.
//
// Plaintext game values never reach the store. Decoded cleartexts are
// returned to the callback caller and mentioned in no event.
package ledger
