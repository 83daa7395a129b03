// Package engine runs the oracle side of the decryption protocol.
//
// The ledger records a decryption request and returns at once. The compute
// engine hands the request to a Relay as a job; the relay's Run loop asks
// the oracle for the cleartexts and proof, then delivers them to the
// ledger's callback entry point. Nothing about the ledger's correctness
// depends on the relay: callbacks may arrive late, out of order or never,
// and a rejected callback leaves the request pending.
//
// Single-Writer Loop:
// Jobs are processed one at a time in FIFO order by the goroutine that
// calls Run. Dispatch is safe from any goroutine and never blocks, which
// matters because the compute engine dispatches from inside a ledger
// transaction.
//
// Error Handling:
// A job that fails (unknown request, oracle error, rejected callback) is
// logged with its request id and dropped. The request stays pending in the
// ledger, so Resume can re-queue it later.
package engine
