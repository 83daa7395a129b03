// Package testutil provides deterministic stand-ins for time, transaction
// tokens and entropy so ledger runs can be compared byte for byte.
package testutil
