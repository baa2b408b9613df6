package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/campusledger/internal/config"
	"github.com/roach88/campusledger/internal/dispatch"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine policies, duplicate handling and lifecycle
	// checks. Database, log and HTTP settings are ignored. It is validated
	// against the same schema as a config file.
	Config *config.Config `yaml:"-"`

	// RawConfig is the undecoded config block.
	RawConfig yaml.Node `yaml:"config,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one positional call.
type Step struct {
	// Caller is the address the call is made on behalf of.
	Caller string `yaml:"caller"`

	// Call is the operation name followed by its arguments.
	Call []string `yaml:"call"`

	// Expect validates the step outcome. If nil, any outcome is accepted.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected rejection code. Empty means the call must succeed.
	Error string `yaml:"error,omitempty"`

	// Record contains expected record field values (subset match).
	// Only checked on success.
	Record map[string]any `yaml:"record,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertCounter       = "counter"
	AssertRecord        = "record"
	AssertAbsent        = "absent"
	AssertJournalCount  = "journal_count"
)

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Ops are operation names in expected order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Outcome optionally restricts matched steps (trace_contains, trace_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number (trace_count, journal_count).
	Count int `yaml:"count,omitempty"`

	// Counter and Value name a counter and its expected value (counter).
	Counter string `yaml:"counter,omitempty"`
	Value   uint64 `yaml:"value,omitempty"`

	// Call is a read call (record, absent).
	Call []string `yaml:"call,omitempty"`

	// Expect contains expected record field values (record).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// LoadScenario reads and validates a scenario file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}

	if !s.RawConfig.IsZero() {
		raw, err := yaml.Marshal(&s.RawConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to encode scenario config: %w", err)
		}
		if s.Config, err = config.Parse(raw); err != nil {
			return nil, fmt.Errorf("invalid scenario: config: %w", err)
		}
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if len(step.Call) == 0 {
			return fmt.Errorf("steps[%d]: call is required", i)
		}
		if _, ok := dispatch.Usage(step.Call[0]); !ok {
			return fmt.Errorf("steps[%d]: unknown operation %q", i, step.Call[0])
		}
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Record != nil {
			return fmt.Errorf("steps[%d].expect: record and error are mutually exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertCounter:
		if a.Counter == "" {
			return fmt.Errorf("assertions[%d]: counter is required for counter", index)
		}
	case AssertRecord:
		if len(a.Call) == 0 {
			return fmt.Errorf("assertions[%d]: call is required for record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record", index)
		}
	case AssertAbsent:
		if len(a.Call) == 0 {
			return fmt.Errorf("assertions[%d]: call is required for absent", index)
		}
	case AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
