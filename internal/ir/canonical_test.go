package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"max uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"bool", true, "true"},
		{"identity", Identity("0xabc"), `"0xabc"`},
		{"target kind", TargetAggregate, `"aggregate"`},
		{"word", WordFromUint64(1), `"0x0000000000000000000000000000000000000000000000000000000000000001"`},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"json number", json.Number("7"), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": map[string]any{"b": 1, "a": 2},
		"beta":  3,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+E000 sorts after U+10000 in UTF-16 (surrogate 0xD800) but before it in UTF-8.
	obj := map[string]any{
		"\uE000":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U00010000\":2,\"\uE000\":1}", string(result))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonical("<script>a & b</script>")
	require.NoError(t, err)
	assert.Equal(t, `"<script>a & b</script>"`, string(result))
	assert.NotContains(t, string(result), `\u003c`)
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed, err := MarshalCanonical(map[string]any{"caf\u00e9": "caf\u00e9"})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(map[string]any{"cafe\u0301": "cafe\u0301"})
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"U+2028", "a\u2028b", "\"a\u2028b\""},
		{"U+2029", "a\u2029b", "\"a\u2029b\""},
		{"literal escape text", `see \u2028`, `"see \\u2028"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"null", nil, "null"},
		{"float64", 3.14, "float"},
		{"fractional number", json.Number("1.5"), "non-integer"},
		{"unsupported", struct{}{}, "unsupported"},
		{"nested null", map[string]any{"a": []any{nil}}, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"b": 1, "a": [true, "x", {"d": 2, "c": 3}]}`,
		`"plain"`,
		`[3, 2, 1]`,
	}

	for _, in := range inputs {
		first, err := Canonicalize([]byte(in))
		require.NoError(t, err)
		second, err := Canonicalize(first)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(second))
	}
}

func TestCanonicalizeRejectsTrailingData(t *testing.T) {
	_, err := Canonicalize([]byte(`{"a":1} {"b":2}`))
	require.Error(t, err)
}

func TestCanonicalPayload(t *testing.T) {
	data, err := CanonicalPayload(ActionSubmittedPayload{ActionID: 9, CivID: 2, Turn: 4})
	require.NoError(t, err)
	assert.Equal(t, `{"action_id":9,"civ_id":2,"turn":4}`, string(data))
}
