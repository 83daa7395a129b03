package ir

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// EventKind names a ledger notification.
type EventKind string

const (
	EventCivSubmitted          EventKind = "CivSubmitted"
	EventActionSubmitted       EventKind = "ActionSubmitted"
	EventWorldAggregateUpdated EventKind = "WorldAggregateUpdated"
	EventWorldAggregateRemoved EventKind = "WorldAggregateRemoved"
	EventDecryptionRequested   EventKind = "DecryptionRequested"
	EventDecryptionCompleted   EventKind = "DecryptionCompleted"
	EventAdminAdded            EventKind = "AdminAdded"
	EventAdminRemoved          EventKind = "AdminRemoved"
)

// Event is one immutable entry in the ledger's notification log.
//
// Payload is canonical JSON. Hash chains the event onto PrevHash; see
// ComputeHash.
type Event struct {
	Seq      int64           `json:"seq"`
	Kind     EventKind       `json:"kind"`
	TxToken  string          `json:"tx_token"`
	At       time.Time       `json:"at"`
	Payload  json.RawMessage `json:"payload"`
	PrevHash string          `json:"prev_hash"`
	Hash     string          `json:"hash"`
}

// ComputeHash returns the chain hash of e given its PrevHash. The envelope
// (seq, kind, tx token, timestamp) and payload are hashed separately so the
// payload bytes never need re-encoding.
func (e Event) ComputeHash() (string, error) {
	envelope, err := MarshalCanonical(map[string]any{
		"seq":      e.Seq,
		"kind":     string(e.Kind),
		"tx_token": e.TxToken,
		"at":       e.At.UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("canonical envelope: %w", err)
	}
	data := make([]byte, 0, len(envelope)+1+len(e.Payload))
	data = append(data, envelope...)
	data = append(data, 0x00)
	data = append(data, e.Payload...)
	return EventHash(e.PrevHash, data), nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// CivSubmittedPayload is the payload of EventCivSubmitted.
type CivSubmittedPayload struct {
	CivID     uint64   `json:"civ_id"`
	Owner     Identity `json:"owner"`
	Timestamp int64    `json:"timestamp"`
}

// ActionSubmittedPayload is the payload of EventActionSubmitted.
type ActionSubmittedPayload struct {
	ActionID uint64 `json:"action_id"`
	CivID    uint64 `json:"civ_id"`
	Turn     uint64 `json:"turn"`
}

// AggregatePayload is the payload of EventWorldAggregateUpdated and
// EventWorldAggregateRemoved.
type AggregatePayload struct {
	Key       AggregateKey `json:"key"`
	Timestamp int64        `json:"timestamp"`
}

// DecryptionPayload is the payload of EventDecryptionRequested and
// EventDecryptionCompleted. RelatedID is the target id as a 32-byte word.
type DecryptionPayload struct {
	RequestID  string     `json:"request_id"`
	TargetKind TargetKind `json:"target_kind"`
	RelatedID  Word       `json:"related_id"`
}

// AdminPayload is the payload of EventAdminAdded and EventAdminRemoved.
type AdminPayload struct {
	Identity Identity `json:"identity"`
	By       Identity `json:"by"`
}

// NewDecryptionPayload builds a decryption payload for a request.
func NewDecryptionPayload(requestID *uint256.Int, target Target) DecryptionPayload {
	return DecryptionPayload{
		RequestID:  requestID.Dec(),
		TargetKind: target.Kind,
		RelatedID:  target.ID,
	}
}

// ParseRequestID parses a request id in decimal or 0x-prefixed hex form.
func ParseRequestID(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("request id is empty")
	}
	if len(s) > 2 && s[:2] == "0x" {
		id, err := uint256.FromHex(s)
		if err != nil {
			return nil, fmt.Errorf("parse request id %q: %w", s, err)
		}
		return id, nil
	}
	id, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse request id %q: %w", s, err)
	}
	return id, nil
}
