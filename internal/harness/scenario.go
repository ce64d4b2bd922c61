package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fablekeep/internal/scene"
)

// Scenario is a scripted play session.
// Scenarios replay user actions against a fresh in-memory app and assert on
// the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Role is "student" (default) or "teacher".
	Role string `yaml:"role,omitempty"`

	// Seed fixes the option-pool shuffle. Zero uses 1.
	Seed uint64 `yaml:"seed,omitempty"`

	// ScenesDir loads scenes from a directory, relative to the scenario
	// file when loaded with LoadScenario.
	ScenesDir string `yaml:"scenes_dir,omitempty"`

	// Scenes defines scenes inline. They are added after ScenesDir.
	Scenes []SceneDef `yaml:"scenes,omitempty"`

	// Setup contains actions that establish initial state. A failing setup
	// action aborts the run.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the actions under test, with optional expectations.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions"`
}

// SceneDef is an inline scene.
type SceneDef struct {
	ID          string     `yaml:"id"`
	Events      []EventDef `yaml:"events"`
	Distractors []string   `yaml:"distractors,omitempty"`
}

// EventDef is one timeline entry of an inline scene.
type EventDef struct {
	Type string `yaml:"type"`
	Text string `yaml:"text"`
}

func (d SceneDef) scene() *scene.Scene {
	sc := &scene.Scene{ID: d.ID}
	for _, ev := range d.Events {
		sc.Timeline.Events = append(sc.Timeline.Events, scene.Event{Type: scene.EventType(ev.Type), Text: ev.Text})
	}
	sc.Timeline.Distractors = append([]string(nil), d.Distractors...)
	return sc
}

// ActionStep is a setup action.
type ActionStep struct {
	// Action names the action (e.g. "select", "adjust").
	Action string `yaml:"action"`

	// Args contains the action arguments.
	Args map[string]any `yaml:"args"`
}

// FlowStep is an action under test.
type FlowStep struct {
	// Invoke names the action.
	Invoke string `yaml:"invoke"`

	// Args contains the action arguments.
	Args map[string]any `yaml:"args"`

	// Expect specifies the expected outcome. If nil, no validation is
	// performed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Case is the expected outcome: "ok", "unchanged" or "error".
	Case string `yaml:"case"`

	// Result holds expected result fields. Subset match: only listed
	// fields are validated.
	Result map[string]any `yaml:"result,omitempty"`
}

// Outcome cases.
const (
	CaseOK        = "ok"
	CaseUnchanged = "unchanged"
	CaseError     = "error"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": action appears in trace with args
	// - "trace_order": actions appear in order
	// - "trace_count": action appears exactly N times
	// - "final_state": a state table has the expected values
	Type string `yaml:"type"`

	// Action is the action name (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Args are the expected action arguments (trace_contains).
	// Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Table names a state table (final_state): gameplay, timeline,
	// sessions or active_session.
	Table string `yaml:"table,omitempty"`

	// Where selects one row of a list table (final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect maps dotted paths to expected values (final_state).
	// Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. A relative
// scenes_dir is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// like "assertion:" fail loudly. basePath resolves a relative scenes_dir;
// empty leaves it unchanged.
func ParseScenario(data []byte, basePath string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.ScenesDir != "" && !filepath.IsAbs(scenario.ScenesDir) && basePath != "" {
		scenario.ScenesDir = filepath.Join(basePath, scenario.ScenesDir)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Role != "" && s.Role != "student" && s.Role != "teacher" {
		return fmt.Errorf("unknown role %q", s.Role)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.ScenesDir != "" {
		if _, err := os.Stat(s.ScenesDir); os.IsNotExist(err) {
			return fmt.Errorf("scenes directory not found: %s", s.ScenesDir)
		}
	}

	seen := make(map[string]bool, len(s.Scenes))
	for i, sc := range s.Scenes {
		if sc.ID == "" {
			return fmt.Errorf("scenes[%d]: id is required", i)
		}
		if seen[sc.ID] {
			return fmt.Errorf("scenes[%d]: duplicate id %q", i, sc.ID)
		}
		seen[sc.ID] = true
		for j, ev := range sc.Events {
			if ev.Type != string(scene.Anchor) && ev.Type != string(scene.Blank) {
				return fmt.Errorf("scenes[%d].events[%d]: unknown type %q", i, j, ev.Type)
			}
		}
	}

	for i, step := range s.Setup {
		if step.Action == "" {
			return fmt.Errorf("setup[%d]: action is required", i)
		}
		if !knownAction(step.Action) {
			return fmt.Errorf("setup[%d]: unknown action %q", i, step.Action)
		}
	}

	for i, step := range s.Flow {
		if step.Invoke == "" {
			return fmt.Errorf("flow[%d]: invoke is required", i)
		}
		if !knownAction(step.Invoke) {
			return fmt.Errorf("flow[%d]: unknown action %q", i, step.Invoke)
		}
		if step.Expect != nil {
			switch step.Expect.Case {
			case CaseOK, CaseUnchanged, CaseError:
			case "":
				return fmt.Errorf("flow[%d].expect: case is required", i)
			default:
				return fmt.Errorf("flow[%d].expect: unknown case %q", i, step.Expect.Case)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if !knownTable(a.Table) {
			return fmt.Errorf("assertions[%d]: unknown table %q for final_state", index, a.Table)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
