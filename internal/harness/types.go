package harness

// TraceEvent is either a scenario step ("step") or a ledger event the step
// committed ("event").
type TraceEvent struct {
	Type    string         `json:"type"`
	Op      string         `json:"op,omitempty"`
	Caller  string         `json:"caller,omitempty"`
	Outcome string         `json:"outcome,omitempty"`
	Result  map[string]any `json:"result,omitempty"`
	Seq     int64          `json:"seq,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Tx      string         `json:"tx,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Trace entry types.
const (
	TypeStep  = "step"
	TypeEvent = "event"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains steps and the events they committed, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Events returns the event entries of the trace.
func (r *Result) Events() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == TypeEvent {
			out = append(out, e)
		}
	}
	return out
}
