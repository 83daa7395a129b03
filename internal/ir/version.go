package ir

// Version constants for the event schema and ledger.
const (
	// SchemaVersion is the event payload schema version. It is stamped into
	// archive headers and the store's user_version.
	SchemaVersion = 1

	// LedgerVersion is the CivBuilder ledger version.
	LedgerVersion = "0.1.0"
)
