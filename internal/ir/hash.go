package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for hashing. The version suffix leaves room for a future
// algorithm migration.
const (
	DomainEvent  = "civbuilder/event/v1"
	DomainHandle = "civbuilder/handle/v1"
)

// GenesisHash is the prev_hash of the first event in a ledger.
var GenesisHash = hashWithDomain(DomainEvent, nil)

// hashWithDomain computes SHA256(domain || 0x00 || data...). The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, d := range data {
		h.Write(d)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// EventHash chains an event onto its predecessor. prevHash is the hex hash
// of the previous event (GenesisHash for the first one); canonical is the
// canonical JSON of the event envelope.
func EventHash(prevHash string, canonical []byte) string {
	return hashWithDomain(DomainEvent, []byte(prevHash), []byte{0x00}, canonical)
}

// HandleDigest fingerprints a handle for logs and CLI output.
func HandleDigest(h Handle) string {
	return hashWithDomain(DomainHandle, h)
}
