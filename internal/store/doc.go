// Package store provides SQLite-backed durable state for the CivBuilder
// ledger.
//
// The store holds:
//   - Admins: the authority set
//   - Civilizations and their append-only action logs
//   - World aggregates plus an ordered key index kept in bijection with them
//   - Decryption requests and their handle snapshots
//   - Events: an append-only, hash-chained notification log
//
// # Transactions
//
// Every mutation goes through Store.Update, which runs the callback inside a
// single SQL transaction and rolls back on any error. Reads go through
// Store.View. The pool is limited to one connection, so transactions never
// interleave.
//
// # Ordering
//
//   - Civilization and action ids come from monotonic counters, never reused
//   - Events are ordered by seq, never by timestamp
//   - Owner civilization lists are ordered by id, which is submission order
//   - The aggregate key index is ordered by position; removal is
//     swap-with-last-and-pop
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// No column ever holds a plaintext game value.
package store
