package ir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAggregateKeyLabel(t *testing.T) {
	k, err := ParseAggregateKey("region-1")
	require.NoError(t, err)

	assert.Equal(t, byte('r'), k[0])
	assert.Equal(t, byte(0), k[31])
	assert.Equal(t, "region-1", k.Label())
}

func TestParseAggregateKeyHexRoundTrip(t *testing.T) {
	k := MustAggregateKey("region-1")

	parsed, err := ParseAggregateKey(k.Hex())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseAggregateKeyNFC(t *testing.T) {
	assert.Equal(t, MustAggregateKey("caf\u00e9"), MustAggregateKey("cafe\u0301"))
}

func TestParseAggregateKeyErrors(t *testing.T) {
	_, err := ParseAggregateKey("")
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = ParseAggregateKey(strings.Repeat("x", 33))
	assert.ErrorIs(t, err, ErrKeyTooLong)

	_, err = ParseAggregateKey("0x" + strings.Repeat("zz", 32))
	assert.Error(t, err)
}

func TestAggregateKeyLabelFallsBackToHex(t *testing.T) {
	var k AggregateKey
	k[0] = 0x01
	assert.Equal(t, k.Hex(), k.Label())

	assert.Equal(t, AggregateKey{}.Hex(), AggregateKey{}.Label())
}

func TestAggregateKeyText(t *testing.T) {
	k := MustAggregateKey("north")
	text, err := k.MarshalText()
	require.NoError(t, err)

	var decoded AggregateKey
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, k, decoded)
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		raw  string
		want Identity
	}{
		{"alice", "alice"},
		{"  0xAbC  ", "0xabc"},
		{"Caf\u00e9", "caf\u00e9"},
	}

	for _, tt := range tests {
		got, err := NormalizeIdentity(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizeIdentity("   ")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
}

func TestWordUint64(t *testing.T) {
	w := WordFromUint64(42)
	n, ok := w.Uint64()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), n)

	var big Word
	big[0] = 1
	_, ok = big.Uint64()
	assert.False(t, ok)
}

func TestHandleString(t *testing.T) {
	h := Handle{0x01, 0x02}
	assert.Len(t, h.String(), 18)
	assert.Equal(t, "0x0102", h.Hex())
	assert.True(t, h.Equal(h.Clone()))

	clone := h.Clone()
	clone[0] = 0xff
	assert.Equal(t, byte(0x01), h[0])
}

func TestTargetKindHandleCount(t *testing.T) {
	assert.Equal(t, 4, TargetCivilization.HandleCount())
	assert.Equal(t, 2, TargetAction.HandleCount())
	assert.Equal(t, 2, TargetAggregate.HandleCount())
	assert.Equal(t, 0, TargetKind("bogus").HandleCount())
	assert.False(t, TargetKind("bogus").Valid())
}
