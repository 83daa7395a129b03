package harness

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Event entries for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Kind, event.Payload)
		}
	}

	return buf.String()
}

// assertEventContains checks that some event of the given kind has a
// payload matching the expected subset.
func assertEventContains(events []TraceEvent, assertion Assertion) error {
	for _, event := range events {
		if event.Kind == assertion.Kind && matchSubset(event.Payload, assertion.Payload) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertEventContains,
		Expected: fmt.Sprintf("event %s with payload %v", assertion.Kind, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    events,
	}
}

// assertEventOrder checks that the first occurrences of the given kinds
// appear in order. Intervening events are allowed.
func assertEventOrder(events []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range events {
		if _, seen := positions[event.Kind]; !seen {
			positions[event.Kind] = i
		}
	}

	for _, kind := range assertion.Kinds {
		if _, ok := positions[kind]; !ok {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("all kinds present: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    events,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev, curr := assertion.Kinds[i-1], assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertEventOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: events,
			}
		}
	}

	return nil
}

// assertEventCount checks that the kind appears exactly Count times.
func assertEventCount(events []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range events {
		if event.Kind == assertion.Kind {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    events,
		}
	}

	return nil
}

// assertFinalState inspects ledger state through the public read surface
// and compares it against the expected subset. Ciphertexts are revealed
// through the devnet so expectations can name plaintext totals.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	state, err := actx.Harness.snapshot(actx.Ctx, assertion)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s state", assertion.Target),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}

	for key, expected := range assertion.Expect {
		actual, exists := state[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q to exist", assertion.Target, key),
				Actual:   fmt.Sprintf("fields: %v", state),
			}
		}
		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q = %v", assertion.Target, key, expected),
				Actual:   fmt.Sprintf("%s field %q = %v", assertion.Target, key, actual),
			}
		}
	}

	return nil
}

// snapshot renders the state selected by a final_state assertion.
func (h *Harness) snapshot(ctx context.Context, a Assertion) (map[string]any, error) {
	switch a.Target {
	case "civilization":
		id, err := h.uintArg(map[string]any{"id": reference(a.ID)}, "id")
		if err != nil {
			return nil, err
		}
		civ, err := h.ledger.GetCiv(ctx, id)
		if err != nil {
			return nil, err
		}
		actions, err := h.ledger.ListActions(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"owner":   string(civ.Owner),
			"actions": len(actions),
		}, nil

	case "aggregate":
		key, err := ir.ParseAggregateKey(a.Key)
		if err != nil {
			return nil, err
		}
		agg, err := h.ledger.GetAggregate(ctx, key)
		if errors.Is(err, ledger.ErrNotFound) {
			return map[string]any{"exists": false}, nil
		}
		if err != nil {
			return nil, err
		}
		resource, err := h.devnet.Reveal(agg.GlobalResource)
		if err != nil {
			return nil, err
		}
		civs, err := h.devnet.Reveal(agg.ActiveCivs)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"exists":          true,
			"global_resource": renderUint256(resource),
			"active_civs":     renderUint256(civs),
		}, nil

	case "aggregate_index":
		keys, err := h.ledger.ListAggregateKeys(ctx)
		if err != nil {
			return nil, err
		}
		labels := make([]any, len(keys))
		for i, k := range keys {
			labels[i] = k.Label()
		}
		return map[string]any{"keys": labels, "count": len(keys)}, nil

	case "request":
		id, err := h.requestArg(map[string]any{"id": reference(a.ID)}, "id")
		if err != nil {
			return nil, err
		}
		req, err := h.ledger.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"status":       string(req.Status),
			"target_kind":  string(req.Target.Kind),
			"fulfillments": req.Fulfillments,
			"handles":      len(req.Handles),
		}, nil

	case "admins":
		admins, err := h.ledger.ListAdmins(ctx)
		if err != nil {
			return nil, err
		}
		identities := make([]any, len(admins))
		for i, admin := range admins {
			identities[i] = string(admin.Identity)
		}
		return map[string]any{"identities": identities, "count": len(admins)}, nil
	}
	return nil, fmt.Errorf("unknown final_state target %q", a.Target)
}

// reference accepts a binding name with or without the leading "$".
func reference(name string) string {
	if strings.HasPrefix(name, "$") {
		return name
	}
	return "$" + name
}

// matchSubset reports whether actual contains every expected key with an
// equal value. Extra keys in actual are ignored.
func matchSubset(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}

// valuesEqual compares two values after normalizing numbers, so YAML ints
// match uint64 ids and json.Number payload fields.
func valuesEqual(actual, expected any) bool {
	return reflect.DeepEqual(normalize(actual), normalize(expected))
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	Harness *Harness
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides ledger access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	events := result.Events()

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertEventContains:
			err = assertEventContains(events, assertion)
		case AssertEventOrder:
			err = assertEventOrder(events, assertion)
		case AssertEventCount:
			err = assertEventCount(events, assertion)
		case AssertFinalState:
			if actx == nil || actx.Harness == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires ledger context", i)
			} else {
				err = assertFinalState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}

	return failures
}
