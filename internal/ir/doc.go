// Package ir provides the canonical domain types shared by every CivBuilder
// ledger package.
//
// This package contains type definitions, canonical JSON and hashing only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Ciphertext handles are opaque bytes; ir never interprets them
//   - No plaintext game value has a field anywhere in ir except Disclosure,
//     which is returned to callers and never persisted
//   - All JSON tags use snake_case
//   - Event ordering uses the ledger seq, never wall-clock timestamps
package ir
