package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/ir"
	"github.com/Darrell9vfv626s6iWooryswobs71wdard/CivBuilder-FHE/internal/store"
)

// Handles are shown by fingerprint. Plaintext never appears in a view
// except in a disclosure.

type civView struct {
	ID          uint64            `json:"id"`
	Owner       string            `json:"owner"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Handles     map[string]string `json:"handles"`
	Actions     int               `json:"actions"`
}

func newCivView(c ir.Civilization, actions int) civView {
	return civView{
		ID:          c.ID,
		Owner:       string(c.Owner),
		SubmittedAt: c.SubmittedAt,
		Handles: map[string]string{
			"resource":   c.Resource.String(),
			"tech":       c.Tech.String(),
			"military":   c.Military.String(),
			"population": c.Population.String(),
		},
		Actions: actions,
	}
}

func (v civView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "civilization %d\n", v.ID)
	fmt.Fprintf(&b, "  owner:      %s\n", v.Owner)
	fmt.Fprintf(&b, "  submitted:  %s\n", v.SubmittedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  actions:    %d\n", v.Actions)
	for _, name := range []string{"resource", "tech", "military", "population"} {
		fmt.Fprintf(&b, "  %-11s %s\n", name+":", v.Handles[name])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type actionView struct {
	ID        uint64            `json:"id"`
	CivID     uint64            `json:"civ_id"`
	Index     int               `json:"index"`
	Turn      uint64            `json:"turn"`
	CreatedAt time.Time         `json:"created_at"`
	Handles   map[string]string `json:"handles"`
}

type actionList []actionView

func newActionList(actions []ir.Action) actionList {
	out := make(actionList, len(actions))
	for i, a := range actions {
		out[i] = actionView{
			ID:        a.ID,
			CivID:     a.CivID,
			Index:     a.Index,
			Turn:      a.Turn,
			CreatedAt: a.CreatedAt,
			Handles: map[string]string{
				"action_type": a.ActionType.String(),
				"payload":     a.Payload.String(),
			},
		}
	}
	return out
}

func (l actionList) String() string {
	if len(l) == 0 {
		return "no actions"
	}
	var b strings.Builder
	for _, a := range l {
		fmt.Fprintf(&b, "[%d] action %d turn %d type=%s payload=%s\n",
			a.Index, a.ID, a.Turn, a.Handles["action_type"], a.Handles["payload"])
	}
	return strings.TrimSuffix(b.String(), "\n")
}

type aggregateView struct {
	Key         string            `json:"key"`
	KeyHex      string            `json:"key_hex"`
	LastUpdated time.Time         `json:"last_updated"`
	Handles     map[string]string `json:"handles"`
}

func newAggregateView(w ir.WorldAggregate) aggregateView {
	return aggregateView{
		Key:         w.Key.Label(),
		KeyHex:      w.Key.Hex(),
		LastUpdated: w.LastUpdated,
		Handles: map[string]string{
			"global_resource": w.GlobalResource.String(),
			"active_civs":     w.ActiveCivs.String(),
		},
	}
}

func (v aggregateView) String() string {
	return fmt.Sprintf("aggregate %s\n  updated:         %s\n  global_resource: %s\n  active_civs:     %s",
		v.Key, v.LastUpdated.Format(time.RFC3339), v.Handles["global_resource"], v.Handles["active_civs"])
}

type requestView struct {
	RequestID    string     `json:"request_id"`
	TargetKind   string     `json:"target_kind"`
	Related      string     `json:"related"`
	Status       string     `json:"status"`
	RequestedBy  string     `json:"requested_by"`
	RequestedAt  time.Time  `json:"requested_at"`
	FulfilledAt  *time.Time `json:"fulfilled_at,omitempty"`
	Fulfillments int        `json:"fulfillments"`
}

func newRequestView(r ir.DecryptionRequest) requestView {
	v := requestView{
		RequestID:    r.RequestID.Dec(),
		TargetKind:   string(r.Target.Kind),
		Related:      relatedLabel(r.Target),
		Status:       string(r.Status),
		RequestedBy:  string(r.RequestedBy),
		RequestedAt:  r.RequestedAt,
		Fulfillments: r.Fulfillments,
	}
	if !r.FulfilledAt.IsZero() {
		at := r.FulfilledAt
		v.FulfilledAt = &at
	}
	return v
}

func (v requestView) String() string {
	return fmt.Sprintf("request %s %s %s %s (by %s, fulfilled %d)",
		v.RequestID, v.TargetKind, v.Related, v.Status, v.RequestedBy, v.Fulfillments)
}

type requestList []requestView

func (l requestList) String() string {
	if len(l) == 0 {
		return "no pending requests"
	}
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// relatedLabel prints a target id as a civ/action number or aggregate label.
func relatedLabel(t ir.Target) string {
	if t.Kind == ir.TargetAggregate {
		return ir.AggregateKey(t.ID).Label()
	}
	if n, ok := t.ID.Uint64(); ok {
		return fmt.Sprint(n)
	}
	return t.ID.Hex()
}

type disclosureView struct {
	RequestID  string            `json:"request_id"`
	TargetKind string            `json:"target_kind"`
	Related    string            `json:"related"`
	Values     map[string]string `json:"values"`
}

// disclosureFields names the cleartext words of each target kind.
var disclosureFields = map[ir.TargetKind][]string{
	ir.TargetCivilization: {"resource", "tech", "military", "population"},
	ir.TargetAction:       {"action_type", "payload"},
	ir.TargetAggregate:    {"global_resource", "active_civs"},
}

func newDisclosureView(d ir.Disclosure) disclosureView {
	names := disclosureFields[d.Target.Kind]
	values := make(map[string]string, len(d.Values))
	for i := range d.Values {
		name := fmt.Sprintf("word%d", i)
		if i < len(names) {
			name = names[i]
		}
		values[name] = d.Values[i].Dec()
	}
	return disclosureView{
		RequestID:  d.RequestID.Dec(),
		TargetKind: string(d.Target.Kind),
		Related:    relatedLabel(d.Target),
		Values:     values,
	}
}

func (v disclosureView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "request %s disclosed %s %s", v.RequestID, v.TargetKind, v.Related)
	for _, name := range disclosureFields[ir.TargetKind(v.TargetKind)] {
		fmt.Fprintf(&b, "\n  %s = %s", name, v.Values[name])
	}
	return b.String()
}

type requestOpened struct {
	RequestID string `json:"request_id"`
}

func newRequestOpened(id *uint256.Int) requestOpened {
	return requestOpened{RequestID: id.Dec()}
}

func (r requestOpened) String() string {
	return "decryption requested: " + r.RequestID
}

type adminList []store.Admin

func (l adminList) MarshalJSON() ([]byte, error) {
	type adminJSON struct {
		Identity string    `json:"identity"`
		AddedBy  string    `json:"added_by"`
		AddedAt  time.Time `json:"added_at"`
	}
	out := make([]adminJSON, len(l))
	for i, a := range l {
		out[i] = adminJSON{Identity: string(a.Identity), AddedBy: string(a.AddedBy), AddedAt: a.AddedAt}
	}
	return json.Marshal(out)
}

func (l adminList) String() string {
	if len(l) == 0 {
		return "no admins"
	}
	lines := make([]string, len(l))
	for i, a := range l {
		lines[i] = fmt.Sprintf("%s (added by %s at %s)", a.Identity, a.AddedBy, a.AddedAt.Format(time.RFC3339))
	}
	return strings.Join(lines, "\n")
}

type eventList []ir.Event

func (l eventList) String() string {
	if len(l) == 0 {
		return "no events"
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = fmt.Sprintf("%6d %-22s %s %s", e.Seq, e.Kind, e.TxToken, e.Payload)
	}
	return strings.Join(lines, "\n")
}

// message is plain text output that renders as {"message": ...} in JSON.
type message struct {
	Message string `json:"message"`
}

func (m message) String() string { return m.Message }
