package harness

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []TraceEvent {
	return []TraceEvent{
		{Type: TypeEvent, Seq: 1, Kind: "AdminAdded", Payload: map[string]any{"identity": "0xdeployer"}},
		{Type: TypeEvent, Seq: 2, Kind: "CivSubmitted", Payload: map[string]any{"civ_id": json.Number("1"), "owner": "0xalice"}},
		{Type: TypeEvent, Seq: 3, Kind: "DecryptionRequested", Payload: map[string]any{"request_id": "req", "related_id": uint64(1)}},
		{Type: TypeEvent, Seq: 4, Kind: "DecryptionCompleted", Payload: map[string]any{"request_id": "req", "related_id": uint64(1)}},
	}
}

func TestAssertEventContains(t *testing.T) {
	events := sampleEvents()

	require.NoError(t, assertEventContains(events, Assertion{
		Kind:    "CivSubmitted",
		Payload: map[string]any{"civ_id": 1},
	}))
	require.NoError(t, assertEventContains(events, Assertion{Kind: "AdminAdded"}))

	err := assertEventContains(events, Assertion{
		Kind:    "DecryptionCompleted",
		Payload: map[string]any{"request_id": "other"},
	})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertEventContains, ae.Type)
	assert.Contains(t, err.Error(), "[4] DecryptionCompleted")
}

func TestAssertEventOrder(t *testing.T) {
	events := sampleEvents()

	assert.NoError(t, assertEventOrder(events, Assertion{Kinds: []string{"AdminAdded", "DecryptionCompleted"}}))

	err := assertEventOrder(events, Assertion{Kinds: []string{"DecryptionCompleted", "CivSubmitted"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")

	err = assertEventOrder(events, Assertion{Kinds: []string{"AdminRemoved"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing kind: AdminRemoved")
}

func TestAssertEventCount(t *testing.T) {
	events := sampleEvents()

	assert.NoError(t, assertEventCount(events, Assertion{Kind: "AdminAdded", Count: 1}))
	assert.NoError(t, assertEventCount(events, Assertion{Kind: "AdminRemoved", Count: 0}))

	err := assertEventCount(events, Assertion{Kind: "AdminAdded", Count: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences")
}

func TestMatchSubset_NormalizesNumbers(t *testing.T) {
	actual := map[string]any{
		"values":  []any{uint64(10), uint64(2)},
		"civ_id":  json.Number("7"),
		"removed": true,
		"extra":   "ignored",
	}

	assert.True(t, matchSubset(actual, map[string]any{"values": []any{10, 2}, "civ_id": 7}))
	assert.True(t, matchSubset(actual, map[string]any{"removed": true}))
	assert.False(t, matchSubset(actual, map[string]any{"values": []any{2, 10}}))
	assert.False(t, matchSubset(actual, map[string]any{"missing": 1}))
	assert.False(t, matchSubset(actual, map[string]any{"removed": "true"}))
}

func TestEvaluateAssertions_FinalStateNeedsContext(t *testing.T) {
	result := NewResult()
	failures := EvaluateAssertions(result, []Assertion{
		{Type: AssertFinalState, Target: "admins", Expect: map[string]any{"count": 1}},
	}, nil)

	require.Len(t, failures, 1)
	assert.Contains(t, failures[0], "final_state requires ledger context")
}
