package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a ledger conformance scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Policy is the fulfillment policy; empty means consume.
	Policy string `yaml:"policy,omitempty"`

	// Setup steps must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of steps.
	Flow []Step `yaml:"flow"`

	// Assertions validate the event trace and final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step invokes one ledger operation.
type Step struct {
	Op     string         `yaml:"op"`
	Caller string         `yaml:"caller,omitempty"`
	Args   map[string]any `yaml:"args,omitempty"`

	// As binds the step's result id to a name.
	As string `yaml:"as,omitempty"`

	// Expect validates the outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected ledger error code; empty means success.
	Error string `yaml:"error,omitempty"`

	// Result is a subset match against the step's result.
	Result map[string]any `yaml:"result,omitempty"`
}

// Assertion validates the trace or the final ledger state.
type Assertion struct {
	Type string `yaml:"type"`

	// Kind is the event kind (event_contains, event_count).
	Kind string `yaml:"kind,omitempty"`

	// Payload is a subset match on the rendered payload (event_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	// Kinds is the expected order (event_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Target selects the state to inspect (final_state).
	Target string `yaml:"target,omitempty"`

	// ID references a bound id (final_state on civilization or request).
	ID string `yaml:"id,omitempty"`

	// Key is an aggregate label (final_state on aggregate).
	Key string `yaml:"key,omitempty"`

	// Expect is a subset match on the inspected state (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion types.
const (
	AssertEventContains = "event_contains"
	AssertEventOrder    = "event_order"
	AssertEventCount    = "event_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	switch s.Policy {
	case "", "consume", "retain":
	default:
		return fmt.Errorf("unknown policy %q", s.Policy)
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps cannot have expect", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(where string, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("%s: op is required", where)
	}
	if _, ok := operations[step.Op]; !ok {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if step.Expect != nil && step.Expect.Error != "" && step.Expect.Result != nil {
		return fmt.Errorf("%s.expect: error and result are mutually exclusive", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertEventContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_contains", index)
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertEventCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for event_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertFinalState:
		switch a.Target {
		case "civilization", "request":
			if a.ID == "" {
				return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Target)
			}
		case "aggregate":
			if a.Key == "" {
				return fmt.Errorf("assertions[%d]: key is required for aggregate", index)
			}
		case "aggregate_index", "admins":
		default:
			return fmt.Errorf("assertions[%d]: unknown final_state target %q", index, a.Target)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
