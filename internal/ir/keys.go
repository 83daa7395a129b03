package ir

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AggregateKey is the bytes32 key of a world aggregate.
type AggregateKey [32]byte

var (
	// ErrEmptyKey is returned for an empty aggregate label.
	ErrEmptyKey = errors.New("aggregate key is empty")

	// ErrKeyTooLong is returned when a label does not fit in 32 bytes.
	ErrKeyTooLong = errors.New("aggregate key exceeds 32 bytes")

	// ErrEmptyIdentity is returned when an identity normalizes to "".
	ErrEmptyIdentity = errors.New("identity is empty")
)

// ParseAggregateKey converts a label into an aggregate key.
//
// A 0x-prefixed 64 character hex literal is decoded verbatim. Any other
// label is NFC normalized and right-padded with zero bytes, so "region-1"
// always maps to the same key regardless of the caller's Unicode form.
func ParseAggregateKey(label string) (AggregateKey, error) {
	if label == "" {
		return AggregateKey{}, ErrEmptyKey
	}
	if strings.HasPrefix(label, "0x") && len(label) == 66 {
		w, err := decodeHex32(label)
		if err != nil {
			return AggregateKey{}, err
		}
		return AggregateKey(w), nil
	}

	normalized := norm.NFC.String(label)
	if len(normalized) > 32 {
		return AggregateKey{}, fmt.Errorf("%w: %q is %d bytes", ErrKeyTooLong, label, len(normalized))
	}
	var k AggregateKey
	copy(k[:], normalized)
	return k, nil
}

// MustAggregateKey is like ParseAggregateKey but panics on error.
// Use only in tests or with constant labels.
func MustAggregateKey(label string) AggregateKey {
	k, err := ParseAggregateKey(label)
	if err != nil {
		panic(err)
	}
	return k
}

// Label returns the printable form of the key: the text label when the key
// was built from one, the hex literal otherwise.
func (k AggregateKey) Label() string {
	end := len(k)
	for end > 0 && k[end-1] == 0 {
		end--
	}
	if end == 0 {
		return k.Hex()
	}
	for _, b := range k[:end] {
		if b == 0 || b < 0x20 || b == 0x7f {
			return k.Hex()
		}
	}
	s := string(k[:end])
	if !norm.NFC.IsNormalString(s) {
		return k.Hex()
	}
	return s
}

// Hex returns the 0x-prefixed 64 character encoding.
func (k AggregateKey) Hex() string {
	return "0x" + hex.EncodeToString(k[:])
}

// MarshalText encodes the key as hex so JSON output is unambiguous.
func (k AggregateKey) MarshalText() ([]byte, error) {
	return []byte(k.Hex()), nil
}

// UnmarshalText accepts either form understood by ParseAggregateKey.
func (k *AggregateKey) UnmarshalText(text []byte) error {
	parsed, err := ParseAggregateKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// NormalizeIdentity trims, NFC normalizes and lower-cases an identity so
// "0xAbC" and "0xabc" name the same caller.
func NormalizeIdentity(raw string) (Identity, error) {
	s := strings.ToLower(norm.NFC.String(strings.TrimSpace(raw)))
	if s == "" {
		return "", ErrEmptyIdentity
	}
	return Identity(s), nil
}

// MustIdentity is like NormalizeIdentity but panics on error.
func MustIdentity(raw string) Identity {
	id, err := NormalizeIdentity(raw)
	if err != nil {
		panic(err)
	}
	return id
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return out, fmt.Errorf("expected 64 hex characters, got %d", len(s))
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, fmt.Errorf("decode hex: %w", err)
	}
	return out, nil
}
