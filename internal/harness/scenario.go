package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vox/internal/ir"
	"github.com/roach88/vox/internal/workflow"
)

// Scenario defines a conversation to replay against the engine.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Patterns is the CUE pattern directory. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Patterns string `yaml:"patterns"`

	// Strict selects strict transition checking. Default: true.
	Strict *bool `yaml:"strict,omitempty"`

	// Timeouts overrides context timeouts ("3m"; "0" disables). Applied
	// after the pattern directory's workflow.timeouts.
	Timeouts map[string]string `yaml:"timeouts,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final state.
	// Supported types: trace_contains, trace_order, trace_count, final_state
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation. Exactly one of the operation fields is set.
type Step struct {
	Say     string `yaml:"say,omitempty"`
	Set     string `yaml:"set,omitempty"`
	Push    string `yaml:"push,omitempty"`
	Pop     bool   `yaml:"pop,omitempty"`
	Error   string `yaml:"error,omitempty"`
	Recover string `yaml:"recover,omitempty"`
	Advance string `yaml:"advance,omitempty"`
	Var     string `yaml:"var,omitempty"`

	// Data seeds the variables of the context entered by set or push.
	Data map[string]any `yaml:"data,omitempty"`
	// Force bypasses strict transition checking for set.
	Force bool `yaml:"force,omitempty"`
	// From attributes an error to another context.
	From string `yaml:"from,omitempty"`
	// Value, Global and Remove qualify var.
	Value  any  `yaml:"value,omitempty"`
	Global bool `yaml:"global,omitempty"`
	Remove bool `yaml:"remove,omitempty"`

	// Expect validates the step's outcome. Without it a failing step is
	// only recorded in the trace.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Operation names, as they appear in traces.
const (
	OpSay     = "say"
	OpSet     = "set"
	OpPush    = "push"
	OpPop     = "pop"
	OpError   = "error"
	OpRecover = "recover"
	OpAdvance = "advance"
	OpVar     = "var"
)

// Op returns the step's operation, or "" if none or several are set.
func (s Step) Op() string {
	var ops []string
	if s.Say != "" {
		ops = append(ops, OpSay)
	}
	if s.Set != "" {
		ops = append(ops, OpSet)
	}
	if s.Push != "" {
		ops = append(ops, OpPush)
	}
	if s.Pop {
		ops = append(ops, OpPop)
	}
	if s.Error != "" {
		ops = append(ops, OpError)
	}
	if s.Recover != "" {
		ops = append(ops, OpRecover)
	}
	if s.Advance != "" {
		ops = append(ops, OpAdvance)
	}
	if s.Var != "" {
		ops = append(ops, OpVar)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// Expect specifies the expected outcome of a step. Unset fields are not
// checked.
type Expect struct {
	// say
	Intent        string         `yaml:"intent,omitempty"`
	Type          string         `yaml:"type,omitempty"`
	MinConfidence float64        `yaml:"min_confidence,omitempty"`
	NoMatch       bool           `yaml:"no_match,omitempty"`
	Params        map[string]any `yaml:"params,omitempty"` // subset match

	// any step
	Context       string   `yaml:"context,omitempty"`
	Depth         *int     `yaml:"depth,omitempty"`
	Error         string   `yaml:"error,omitempty"` // workflow error code
	Escalated     *bool    `yaml:"escalated,omitempty"`
	Notifications []string `yaml:"notifications,omitempty"` // exact sequence
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some say step matched Intent
	// - "trace_order": Contexts were visited in order (gaps allowed)
	// - "trace_count": notifications of Kind were delivered Count times
	// - "final_state": Expect is a subset of the final state
	Type string `yaml:"type"`

	Intent   string         `yaml:"intent,omitempty"`
	Contexts []string       `yaml:"contexts,omitempty"`
	Kind     string         `yaml:"kind,omitempty"`
	Count    int            `yaml:"count,omitempty"`
	Expect   map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
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

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Patterns != "" && !filepath.IsAbs(scenario.Patterns) {
		scenario.Patterns = filepath.Join(filepath.Dir(path), scenario.Patterns)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative pattern paths are left as
// they are.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Patterns == "" {
		return fmt.Errorf("patterns is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	for name, d := range s.Timeouts {
		if _, err := ir.ParseContextType(name); err != nil {
			return fmt.Errorf("timeouts: %w", err)
		}
		if _, err := parseTimeout(d); err != nil {
			return fmt.Errorf("timeouts[%s]: %w", name, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	op := s.Op()
	if op == "" {
		return fmt.Errorf("steps[%d]: exactly one of say, set, push, pop, error, recover, advance, var is required", index)
	}

	switch op {
	case OpSet, OpPush:
		target := s.Set
		if op == OpPush {
			target = s.Push
		}
		if _, err := ir.ParseContextType(target); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case OpError:
		if s.From != "" {
			if _, err := ir.ParseContextType(s.From); err != nil {
				return fmt.Errorf("steps[%d]: from: %w", index, err)
			}
		}
	case OpRecover:
		if _, err := workflow.ParseRecoveryAction(s.Recover); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case OpAdvance:
		d, err := time.ParseDuration(s.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
	case OpVar:
		if s.Remove == (s.Value != nil) {
			return fmt.Errorf("steps[%d]: var needs exactly one of value or remove", index)
		}
	}

	if s.Expect != nil {
		if s.Expect.Context != "" {
			if _, err := ir.ParseContextType(s.Expect.Context); err != nil {
				return fmt.Errorf("steps[%d]: expect.context: %w", index, err)
			}
		}
		if s.Expect.NoMatch && s.Expect.Intent != "" {
			return fmt.Errorf("steps[%d]: expect.no_match contradicts expect.intent", index)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Intent == "" {
			return fmt.Errorf("assertions[%d]: intent is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Contexts) == 0 {
			return fmt.Errorf("assertions[%d]: contexts list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if !knownKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown notification kind %q", index, a.Kind)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func knownKind(k string) bool {
	for _, kind := range workflow.Kinds {
		if string(kind) == k {
			return true
		}
	}
	return false
}

// parseTimeout accepts a duration string or a bare "0".
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", s)
	}
	return d, nil
}
