package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/engine"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/fhe"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ledger"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/testutil"
)

// devnetSecret keys the harness engine. Scenario traces never expose
// handles, so the value only has to be stable.
const devnetSecret = "civbuilder-harness-devnet"

// Harness is the scenario execution engine.
type Harness struct {
	store  *store.Store
	ledger *ledger.Ledger
	devnet *fhe.Devnet
	relay  *engine.Relay
	sink   *eventSink

	// bindings holds "as" results: uint64 ids or *uint256.Int request ids.
	bindings map[string]any
	// aliases maps a request id (decimal) back to its binding name.
	aliases map[string]string
}

// eventSink buffers published events until the current step is traced.
type eventSink struct {
	mu     sync.Mutex
	events []ir.Event
}

func (s *eventSink) Publish(events []ir.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *eventSink) take() []ir.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.events
	s.events = nil
	return out
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database and devnet engine
// 2. Execute setup steps (all must succeed)
// 3. Execute flow steps with expect validation
// 4. Evaluate assertions and verify the event chain
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	policy, err := ledger.ParsePolicy(scenario.Policy)
	if err != nil {
		return nil, err
	}

	devnet, err := fhe.NewDevnet([]byte(devnetSecret),
		fhe.WithRandom(testutil.NewDeterministicReader(scenario.Name)),
	)
	if err != nil {
		return nil, err
	}

	sink := &eventSink{}
	l := ledger.New(st, devnet,
		ledger.WithClock(testutil.NewDefaultStepClock().Now),
		ledger.WithTokenGenerator(testutil.NewSequenceTokenGenerator("tx")),
		ledger.WithPolicy(policy),
		ledger.WithPublisher(sink),
	)
	relay := engine.New(devnet, l)
	devnet.SetDispatcher(relay)

	h := &Harness{
		store:    st,
		ledger:   l,
		devnet:   devnet,
		relay:    relay,
		sink:     sink,
		bindings: make(map[string]any),
		aliases:  make(map[string]string),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		outcome, err := h.execute(ctx, step, result)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, err)
		}
		if outcome != outcomeOK {
			return nil, fmt.Errorf("setup[%d] %s: failed with %s", i, step.Op, outcome)
		}
	}

	for i, step := range scenario.Flow {
		if _, err := h.execute(ctx, step, result); err != nil {
			result.AddError(fmt.Sprintf("flow[%d] %s: %v", i, step.Op, err))
		}
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, &AssertionContext{Ctx: ctx, Harness: h}) {
		result.AddError(msg)
	}

	report, err := l.VerifyEventChain(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify event chain: %w", err)
	}
	if !report.OK() {
		result.AddError(fmt.Sprintf("event chain broken at seq %d: %s", report.BrokenAt, report.Reason))
	}

	return result, nil
}

const outcomeOK = "OK"

// execute runs one step, traces it and checks its expectation. The
// returned error describes a failed expectation or a harness problem.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) (string, error) {
	op := operations[step.Op]
	caller := ir.Identity(step.Caller)

	res, opErr := op(h, ctx, caller, step.Args)

	outcome := outcomeOK
	if opErr != nil {
		code := ledger.CodeOf(opErr)
		if code == "" {
			h.traceStep(result, step, "ERROR", nil)
			return "ERROR", opErr
		}
		outcome = string(code)
		res = nil
	}

	var bindErr error
	if step.As != "" && res != nil {
		bindErr = h.bind(step.As, res)
	}
	h.traceStep(result, step, outcome, res)
	if bindErr != nil {
		return outcome, bindErr
	}

	if step.Expect == nil {
		if outcome != outcomeOK {
			return outcome, fmt.Errorf("unexpected failure: %v", opErr)
		}
		return outcome, nil
	}

	want := step.Expect.Error
	if want == "" {
		want = outcomeOK
	}
	if outcome != want {
		return outcome, fmt.Errorf("expected %s, got %s (%v)", want, outcome, opErr)
	}
	if step.Expect.Result != nil && !matchSubset(renderResult(h, res), step.Expect.Result) {
		return outcome, fmt.Errorf("result %v does not match expected %v", renderResult(h, res), step.Expect.Result)
	}
	return outcome, nil
}

func (h *Harness) traceStep(result *Result, step Step, outcome string, res map[string]any) {
	result.Trace = append(result.Trace, TraceEvent{
		Type:    TypeStep,
		Op:      step.Op,
		Caller:  step.Caller,
		Outcome: outcome,
		Result:  renderResult(h, res),
	})
	for _, e := range h.sink.take() {
		result.Trace = append(result.Trace, TraceEvent{
			Type:    TypeEvent,
			Seq:     e.Seq,
			Kind:    string(e.Kind),
			Tx:      e.TxToken,
			Payload: h.renderPayload(e),
		})
	}
}

// bind records the "id" entry of a step result under name.
func (h *Harness) bind(name string, res map[string]any) error {
	id, ok := res[resultID]
	if !ok {
		return fmt.Errorf("step result has no id to bind as %q", name)
	}
	h.bindings[name] = id
	if req, ok := id.(*uint256.Int); ok {
		h.aliases[req.Dec()] = name
	}
	return nil
}

// resultID is the result key holding the value "as" binds. It is renamed
// per operation when rendered.
const resultID = "id"

// renderResult makes a step result printable: request ids become their
// binding names and the id key gets its operation-specific name.
func renderResult(h *Harness, res map[string]any) map[string]any {
	if len(res) == 0 {
		return nil
	}
	out := make(map[string]any, len(res))
	for k, v := range res {
		if k == resultID {
			k, _ = res[resultIDName].(string)
		}
		if k == resultIDName {
			continue
		}
		if req, ok := v.(*uint256.Int); ok {
			v = h.alias(req)
		}
		out[k] = v
	}
	return out
}

// resultIDName carries the rendered name of the id entry.
const resultIDName = "_id_name"

func (h *Harness) alias(id *uint256.Int) string {
	if name, ok := h.aliases[id.Dec()]; ok {
		return name
	}
	return "unbound"
}

// renderPayload decodes an event payload for the trace, replacing request
// ids with binding names and words with ids or labels.
func (h *Harness) renderPayload(e ir.Event) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(e.Payload))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return map[string]any{"undecodable": err.Error()}
	}

	if v, ok := payload["request_id"].(string); ok {
		if name, ok := h.aliases[v]; ok {
			payload["request_id"] = name
		}
	}
	if v, ok := payload["related_id"].(string); ok {
		var w ir.Word
		if err := w.UnmarshalText([]byte(v)); err == nil {
			if payload["target_kind"] == string(ir.TargetAggregate) {
				payload["related_id"] = ir.AggregateKey(w).Label()
			} else if n, ok := w.Uint64(); ok {
				payload["related_id"] = n
			}
		}
	}
	if v, ok := payload["key"].(string); ok {
		if k, err := ir.ParseAggregateKey(v); err == nil {
			payload["key"] = k.Label()
		}
	}
	return payload
}

// opFunc executes one operation. A non-nil result may carry an "id" entry
// for "as" bindings.
type opFunc func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error)

var operations = map[string]opFunc{
	"bootstrap": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		return nil, h.ledger.Bootstrap(ctx, caller)
	},
	"add_admin": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		identity, err := stringArg(args, "identity")
		if err != nil {
			return nil, err
		}
		return nil, h.ledger.AddAdmin(ctx, caller, ir.Identity(identity))
	},
	"remove_admin": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		identity, err := stringArg(args, "identity")
		if err != nil {
			return nil, err
		}
		return nil, h.ledger.RemoveAdmin(ctx, caller, ir.Identity(identity))
	},
	"submit_civ": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		handles, err := h.encryptArgs(args, "resource", "tech", "military", "population")
		if err != nil {
			return nil, err
		}
		id, err := h.ledger.SubmitCivilization(ctx, caller, handles[0], handles[1], handles[2], handles[3])
		if err != nil {
			return nil, err
		}
		return idResult("civ_id", id), nil
	},
	"submit_action": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		civ, err := h.uintArg(args, "civ")
		if err != nil {
			return nil, err
		}
		turn, err := h.uintArg(args, "turn")
		if err != nil {
			return nil, err
		}
		handles, err := h.encryptArgs(args, "action_type", "payload")
		if err != nil {
			return nil, err
		}
		id, err := h.ledger.SubmitAction(ctx, caller, civ, handles[0], handles[1], turn)
		if err != nil {
			return nil, err
		}
		return idResult("action_id", id), nil
	},
	"update_aggregate": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		key, err := keyArg(args)
		if err != nil {
			return nil, err
		}
		handles, err := h.encryptArgs(args, "resource", "civs")
		if err != nil {
			return nil, err
		}
		return nil, h.ledger.UpdateWorldAggregate(ctx, caller, key, handles[0], handles[1])
	},
	"remove_aggregate": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		key, err := keyArg(args)
		if err != nil {
			return nil, err
		}
		removed, err := h.ledger.AdminRemoveAggregate(ctx, caller, key)
		if err != nil {
			return nil, err
		}
		return map[string]any{"removed": removed}, nil
	},
	"request_civ_decryption": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		civ, err := h.uintArg(args, "civ")
		if err != nil {
			return nil, err
		}
		id, err := h.ledger.RequestCivDecryption(ctx, caller, civ)
		if err != nil {
			return nil, err
		}
		return idResult("request", id), nil
	},
	"request_action_decryption": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		civ, err := h.uintArg(args, "civ")
		if err != nil {
			return nil, err
		}
		index, err := h.uintArg(args, "index")
		if err != nil {
			return nil, err
		}
		id, err := h.ledger.RequestActionDecryption(ctx, caller, civ, int(index))
		if err != nil {
			return nil, err
		}
		return idResult("request", id), nil
	},
	"request_aggregate_decryption": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		key, err := keyArg(args)
		if err != nil {
			return nil, err
		}
		id, err := h.ledger.RequestAggregateDecryption(ctx, caller, key)
		if err != nil {
			return nil, err
		}
		return idResult("request", id), nil
	},
	"fulfill": (*Harness).fulfill,
	"relay": func(h *Harness, ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
		delivered, failed := 0, 0
		for _, r := range h.relay.Drain(ctx) {
			if r.Err != nil {
				failed++
				continue
			}
			delivered++
		}
		return map[string]any{"delivered": delivered, "failed": failed}, nil
	},
}

// fulfill plays the oracle for one request.
func (h *Harness) fulfill(ctx context.Context, caller ir.Identity, args map[string]any) (map[string]any, error) {
	id, err := h.requestArg(args, "request")
	if err != nil {
		return nil, err
	}
	req, err := h.ledger.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	cleartexts, proof, err := h.devnet.Decrypt(ctx, id)
	if err != nil {
		return nil, err
	}

	if forged, ok := args["cleartexts"]; ok {
		list, ok := forged.([]any)
		if !ok {
			return nil, fmt.Errorf("cleartexts must be a list")
		}
		values := make([]*uint256.Int, len(list))
		for i, v := range list {
			if values[i], err = toUint256(v); err != nil {
				return nil, fmt.Errorf("cleartexts[%d]: %w", i, err)
			}
		}
		cleartexts = ledger.EncodeCleartexts(values...)
		proof = h.devnet.Prove(id, cleartexts)
	}
	if tamper, _ := args["tamper"].(bool); tamper && len(cleartexts) > 0 {
		cleartexts = append([]byte(nil), cleartexts...)
		cleartexts[len(cleartexts)-1] ^= 0x01
	}

	kind := req.Target.Kind
	if v, ok := args["kind"]; ok {
		s, _ := v.(string)
		kind = ir.TargetKind(s)
	}

	d, err := h.ledger.HandleDecryption(ctx, ledger.Callback{
		RequestID:  id,
		Tag:        fhe.TagFor(kind),
		Cleartexts: cleartexts,
		Proof:      proof,
	})
	if err != nil {
		return nil, err
	}

	values := make([]any, len(d.Values))
	for i := range d.Values {
		values[i] = renderUint256(&d.Values[i])
	}
	return map[string]any{"values": values}, nil
}

func idResult(name string, id any) map[string]any {
	return map[string]any{resultID: id, resultIDName: name}
}

func (h *Harness) encryptArgs(args map[string]any, names ...string) ([]ir.Handle, error) {
	handles := make([]ir.Handle, len(names))
	for i, name := range names {
		v, ok := args[name]
		if !ok {
			return nil, fmt.Errorf("missing arg %q", name)
		}
		n, err := toUint256(v)
		if err != nil {
			return nil, fmt.Errorf("arg %q: %w", name, err)
		}
		if handles[i], err = h.devnet.Encrypt(n); err != nil {
			return nil, err
		}
	}
	return handles, nil
}

func (h *Harness) resolve(v any) (any, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "$") {
		return v, nil
	}
	bound, ok := h.bindings[s[1:]]
	if !ok {
		return nil, fmt.Errorf("unbound reference %s", s)
	}
	return bound, nil
}

func (h *Harness) uintArg(args map[string]any, name string) (uint64, error) {
	raw, ok := args[name]
	if !ok {
		return 0, fmt.Errorf("missing arg %q", name)
	}
	v, err := h.resolve(raw)
	if err != nil {
		return 0, err
	}
	n, err := toUint256(v)
	if err != nil {
		return 0, fmt.Errorf("arg %q: %w", name, err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("arg %q: out of range", name)
	}
	return n.Uint64(), nil
}

func (h *Harness) requestArg(args map[string]any, name string) (*uint256.Int, error) {
	raw, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing arg %q", name)
	}
	v, err := h.resolve(raw)
	if err != nil {
		return nil, err
	}
	return toUint256(v)
}

func stringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name].(string)
	if !ok {
		return "", fmt.Errorf("missing string arg %q", name)
	}
	return v, nil
}

func keyArg(args map[string]any) (ir.AggregateKey, error) {
	label, err := stringArg(args, "key")
	if err != nil {
		return ir.AggregateKey{}, err
	}
	return ir.ParseAggregateKey(label)
}

// toUint256 accepts YAML integers, uint64 ids, request ids and decimal
// strings.
func toUint256(v any) (*uint256.Int, error) {
	switch n := v.(type) {
	case int:
		if n < 0 {
			return nil, fmt.Errorf("negative value %d", n)
		}
		return uint256.NewInt(uint64(n)), nil
	case uint64:
		return uint256.NewInt(n), nil
	case *uint256.Int:
		return n, nil
	case string:
		out, err := uint256.FromDecimal(n)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", n, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value %v (%T)", v, v)
}

// renderUint256 prints small values as numbers and large ones as decimal
// strings.
func renderUint256(v *uint256.Int) any {
	if v.IsUint64() {
		return v.Uint64()
	}
	return v.Dec()
}

// normalize converts numbers to decimal strings so YAML ints, uint64 ids
// and json.Number payload values compare equal.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case json.Number:
		return val.String()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	}
	return v
}
