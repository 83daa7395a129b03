package ir

import (
	"bytes"
	"encoding/hex"
	"time"

	"github.com/holiman/uint256"
)

// Identity names a caller (wallet address, account name). Always compare
// normalized identities; see NormalizeIdentity.
type Identity string

// Handle is an opaque reference to an encrypted value owned by the compute
// engine. The ledger stores and forwards handles without interpreting them.
type Handle []byte

// Equal reports whether two handles are byte-identical.
func (h Handle) Equal(other Handle) bool {
	return bytes.Equal(h, other)
}

// Clone returns a copy that does not alias h.
func (h Handle) Clone() Handle {
	if h == nil {
		return nil
	}
	out := make(Handle, len(h))
	copy(out, h)
	return out
}

// String returns a short fingerprint suitable for logs. It never reveals
// more than the handle bytes themselves.
func (h Handle) String() string {
	return "0x" + HandleDigest(h)[:16]
}

// Hex returns the full hex encoding of the handle.
func (h Handle) Hex() string {
	return "0x" + hex.EncodeToString(h)
}

// TargetKind identifies what a decryption request discloses.
type TargetKind string

const (
	TargetCivilization TargetKind = "civilization"
	TargetAction       TargetKind = "action"
	TargetAggregate    TargetKind = "aggregate"
)

// Valid reports whether k is a known target kind.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetCivilization, TargetAction, TargetAggregate:
		return true
	}
	return false
}

// HandleCount is the number of handles (and cleartext words) a target
// discloses at once.
func (k TargetKind) HandleCount() int {
	switch k {
	case TargetCivilization:
		return 4
	case TargetAction, TargetAggregate:
		return 2
	}
	return 0
}

// RequestStatus is the broker state of a decryption request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusFulfilled RequestStatus = "fulfilled"
)

// Word is a 32-byte big-endian value. Related ids in events and request
// targets are words so that civilizations, actions and aggregate keys share
// one representation.
type Word [32]byte

// WordFromUint64 left-pads n into a word.
func WordFromUint64(n uint64) Word {
	return Word(uint256.NewInt(n).Bytes32())
}

// Uint64 returns the low 64 bits of the word and whether the value fit.
func (w Word) Uint64() (uint64, bool) {
	v := new(uint256.Int).SetBytes32(w[:])
	return v.Uint64(), v.IsUint64()
}

// Hex returns the 0x-prefixed 64 character encoding.
func (w Word) Hex() string {
	return "0x" + hex.EncodeToString(w[:])
}

// MarshalText encodes the word as 0x-prefixed hex.
func (w Word) MarshalText() ([]byte, error) {
	return []byte(w.Hex()), nil
}

// UnmarshalText decodes a 0x-prefixed 64 character hex string.
func (w *Word) UnmarshalText(text []byte) error {
	b, err := decodeHex32(string(text))
	if err != nil {
		return err
	}
	*w = b
	return nil
}

// Target names the record a decryption request discloses.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   Word       `json:"id"`
}

// CivTarget builds a civilization target.
func CivTarget(civID uint64) Target {
	return Target{Kind: TargetCivilization, ID: WordFromUint64(civID)}
}

// ActionTarget builds an action target.
func ActionTarget(actionID uint64) Target {
	return Target{Kind: TargetAction, ID: WordFromUint64(actionID)}
}

// AggregateTarget builds an aggregate target.
func AggregateTarget(key AggregateKey) Target {
	return Target{Kind: TargetAggregate, ID: Word(key)}
}

// Civilization is a submitted player civilization. Every game attribute is
// a ciphertext handle.
type Civilization struct {
	ID          uint64    `json:"id"`
	Owner       Identity  `json:"owner"`
	Resource    Handle    `json:"resource"`
	Tech        Handle    `json:"tech"`
	Military    Handle    `json:"military"`
	Population  Handle    `json:"population"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Handles returns the civilization handles in disclosure order.
func (c Civilization) Handles() []Handle {
	return []Handle{c.Resource, c.Tech, c.Military, c.Population}
}

// Action is one entry in a civilization's append-only action log.
type Action struct {
	ID         uint64    `json:"id"`
	CivID      uint64    `json:"civ_id"`
	Index      int       `json:"index"`
	ActionType Handle    `json:"action_type"`
	Payload    Handle    `json:"payload"`
	Turn       uint64    `json:"turn"`
	CreatedAt  time.Time `json:"created_at"`
}

// Handles returns the action handles in disclosure order.
func (a Action) Handles() []Handle {
	return []Handle{a.ActionType, a.Payload}
}

// WorldAggregate is a keyed running total maintained homomorphically.
type WorldAggregate struct {
	Key            AggregateKey `json:"key"`
	GlobalResource Handle       `json:"global_resource"`
	ActiveCivs     Handle       `json:"active_civs"`
	LastUpdated    time.Time    `json:"last_updated"`
}

// Handles returns the aggregate handles in disclosure order.
func (w WorldAggregate) Handles() []Handle {
	return []Handle{w.GlobalResource, w.ActiveCivs}
}

// DecryptionRequest is a broker record. Handles is the snapshot taken at
// request time; it is cleared once the request is consumed.
type DecryptionRequest struct {
	RequestID    uint256.Int
	Target       Target
	Status       RequestStatus
	Handles      []Handle
	RequestedBy  Identity
	RequestedAt  time.Time
	FulfilledAt  time.Time
	Fulfillments int
}

// Disclosure carries decoded cleartexts back to the caller of a callback.
// It is never written to ledger state.
type Disclosure struct {
	RequestID uint256.Int
	Target    Target
	Values    []uint256.Int
}

// CivDisclosure is the decoded view of a civilization disclosure.
type CivDisclosure struct {
	CivID      uint64
	Resource   uint256.Int
	Tech       uint256.Int
	Military   uint256.Int
	Population uint256.Int
}

// ActionDisclosure is the decoded view of an action disclosure.
type ActionDisclosure struct {
	ActionID   uint64
	ActionType uint256.Int
	Payload    uint256.Int
}

// AggregateDisclosure is the decoded view of an aggregate disclosure.
type AggregateDisclosure struct {
	Key            AggregateKey
	GlobalResource uint256.Int
	ActiveCivs     uint256.Int
}
