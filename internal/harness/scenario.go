package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/queryir"
	"github.com/roach88/cascade/internal/session"
)

// Scenario defines a conformance test scenario: a schema, seed data, a
// sequence of mutations, and assertions over what they committed.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is inline CUE declaring the models. When empty, the models
	// passed to Run are used.
	Schema string `yaml:"schema,omitempty"`

	// Seed is imported and fully computed before the first step. It is
	// not part of the trace.
	Seed session.Dataset `yaml:"seed,omitempty"`

	// Steps are the mutations under test, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final records and the trace.
	// Supported types: record_equals, operation_count, operation_contains,
	// no_operations
	Assertions []Assertion `yaml:"assertions"`

	// User is the user id recorded on every transaction. Defaults to
	// "harness".
	User string `yaml:"user,omitempty"`
}

// Step is one mutation. Exactly one field is set.
type Step struct {
	Set       *SetStep       `yaml:"set,omitempty"`
	Link      *LinkStep      `yaml:"link,omitempty"`
	Unlink    *LinkStep      `yaml:"unlink,omitempty"`
	Delete    *DeleteStep    `yaml:"delete,omitempty"`
	Recompute *RecomputeStep `yaml:"recompute,omitempty"`
}

// SetStep writes stored fields of a record, creating it if needed.
type SetStep struct {
	Model  string         `yaml:"model"`
	ID     string         `yaml:"id"`
	Fields map[string]any `yaml:"fields"`
}

// LinkStep links or unlinks record ID of Model through Field and To.
type LinkStep struct {
	Model string `yaml:"model"`
	ID    string `yaml:"id"`
	Field string `yaml:"field"`
	To    string `yaml:"to"`
}

// DeleteStep deletes records of one model.
type DeleteStep struct {
	Model string   `yaml:"model"`
	IDs   []string `yaml:"ids"`
}

// RecomputeStep recomputes records of one model: IDs, the records matching
// Where, or all of them.
type RecomputeStep struct {
	Model string   `yaml:"model"`
	IDs   []string `yaml:"ids,omitempty"`
	Where string   `yaml:"where,omitempty"`
}

// Action names the step's mutation.
func (s Step) Action() string {
	switch {
	case s.Set != nil:
		return "set"
	case s.Link != nil:
		return "link"
	case s.Unlink != nil:
		return "unlink"
	case s.Delete != nil:
		return "delete"
	case s.Recompute != nil:
		return "recompute"
	}
	return ""
}

func (s Step) count() int {
	n := 0
	for _, set := range []bool{s.Set != nil, s.Link != nil, s.Unlink != nil, s.Delete != nil, s.Recompute != nil} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record_equals": the record's fields include Expect
	// - "operation_count": Step (or the whole run) applied Count operations
	// - "operation_contains": an operation on Model/ID has updates including Expect
	// - "no_operations": Step applied nothing
	Type string `yaml:"type"`

	Model string `yaml:"model,omitempty"`
	ID    string `yaml:"id,omitempty"`

	// Step selects one step's operations by index. Absent means every step.
	Step *int `yaml:"step,omitempty"`

	// Expect contains expected field values. Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of operations (used by operation_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordEquals      = "record_equals"
	AssertOperationCount    = "operation_count"
	AssertOperationContains = "operation_contains"
	AssertNoOperations      = "no_operations"
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

// ParseScenario parses and validates scenario YAML.
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, len(s.Steps)); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	if step.count() != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set, link, unlink, delete, recompute is required", index)
	}

	var model, id string
	switch {
	case step.Set != nil:
		model, id = step.Set.Model, step.Set.ID
	case step.Link != nil:
		model, id = step.Link.Model, step.Link.ID
		if step.Link.Field == "" || step.Link.To == "" {
			return fmt.Errorf("steps[%d]: link needs field and to", index)
		}
	case step.Unlink != nil:
		model, id = step.Unlink.Model, step.Unlink.ID
		if step.Unlink.Field == "" || step.Unlink.To == "" {
			return fmt.Errorf("steps[%d]: unlink needs field and to", index)
		}
	case step.Delete != nil:
		model = step.Delete.Model
		if len(step.Delete.IDs) == 0 {
			return fmt.Errorf("steps[%d]: delete needs ids", index)
		}
		id = "-"
	case step.Recompute != nil:
		model, id = step.Recompute.Model, "-"
		if _, err := queryir.ParseFilter(step.Recompute.Where); err != nil {
			return fmt.Errorf("steps[%d]: where: %w", index, err)
		}
	}

	if model == "" {
		return fmt.Errorf("steps[%d]: model is required", index)
	}
	if id == "" {
		return fmt.Errorf("steps[%d]: id is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Step != nil && (*a.Step < 0 || *a.Step >= steps) {
		return fmt.Errorf("assertions[%d]: step %d out of range", index, *a.Step)
	}

	switch a.Type {
	case AssertRecordEquals:
		if a.Model == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: model and id are required for record_equals", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for record_equals", index)
		}
	case AssertOperationCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for operation_count", index)
		}
	case AssertOperationContains:
		if a.Model == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: model and id are required for operation_contains", index)
		}
	case AssertNoOperations:
		if a.Step == nil {
			return fmt.Errorf("assertions[%d]: step is required for no_operations", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
