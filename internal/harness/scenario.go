package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tabstore/internal/listener"
)

// Scenario defines a conformance test scenario.
// Scenarios drive a fresh store through a list of steps with listeners
// attached, then assert on the resulting listener trace and final content.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional CUE schema file compiled and applied before
	// any step. Relative paths resolve against the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// TablesSchema and ValuesSchema set schemas inline. They are applied
	// after Schema and replace it.
	TablesSchema map[string]map[string]CellSpec `yaml:"tables_schema,omitempty"`
	ValuesSchema map[string]CellSpec            `yaml:"values_schema,omitempty"`

	// Listeners are registered in order before the first step.
	Listeners []ListenerSpec `yaml:"listeners,omitempty"`

	// Steps are the store operations to perform.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and content.
	// Supported types: content, cell, value, json, fired, not_fired,
	// fire_count, trace_order
	Assertions []Assertion `yaml:"assertions"`
}

// CellSpec is one cell or value schema entry.
type CellSpec struct {
	Type    string `yaml:"type"`
	Default any    `yaml:"default,omitempty"`
}

// ListenerSpec registers one listener.
type ListenerSpec struct {
	// ID names the listener in the trace and in assertions.
	ID string `yaml:"id"`

	// Category is the listener category name, e.g. "cell" or "rowIds".
	Category string `yaml:"category"`

	// Path holds one id per positional segment of the category. A null
	// entry is the wildcard.
	Path []any `yaml:"path,omitempty"`

	// Mutator registers a mutator listener.
	Mutator bool `yaml:"mutator,omitempty"`

	// Descending, Offset and Limit configure sortedRowIds listeners.
	Descending bool `yaml:"descending,omitempty"`
	Offset     int  `yaml:"offset,omitempty"`
	Limit      int  `yaml:"limit,omitempty"`

	// Write is performed by the listener every time it fires.
	Write *Step `yaml:"write,omitempty"`
}

// Step is a single store operation, or a transaction of nested steps.
type Step struct {
	// Op is the operation name, e.g. "set_row" or "del_cell".
	Op string `yaml:"op,omitempty"`

	// Args are the positional operation arguments. Mappings keep the
	// order they are written in.
	Args []yaml.Node `yaml:"args,omitempty"`

	// Transaction runs the nested steps as one transaction.
	Transaction []Step `yaml:"transaction,omitempty"`

	// Rollback reverts the transaction once its mutators have run.
	Rollback bool `yaml:"rollback,omitempty"`

	// Expect is the row id add_row must return.
	Expect string `yaml:"expect,omitempty"`

	// ExpectError requires the operation to fail: add_row returns no id,
	// a JSON text op returns an error.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Assertion validates the trace or the final content.
type Assertion struct {
	// Type specifies the assertion type:
	// - "content": final tables and values equal Tables and Values
	// - "cell": cell Table/Row/Cell equals Expect (null: absent)
	// - "value": value ValueID equals Expect (null: absent)
	// - "json": GetJSON() equals JSON
	// - "fired": Listener fired at least once (with IDs, if given)
	// - "not_fired": Listener never fired
	// - "fire_count": Listener fired exactly Count times
	// - "trace_order": Listeners first fired in this order
	Type string `yaml:"type"`

	// Tables and Values are the expected content (used by content).
	Tables any `yaml:"tables,omitempty"`
	Values any `yaml:"values,omitempty"`

	// Table, Row and Cell address a cell (used by cell).
	Table string `yaml:"table,omitempty"`
	Row   string `yaml:"row,omitempty"`
	Cell  string `yaml:"cell,omitempty"`

	// ValueID addresses a value (used by value).
	ValueID string `yaml:"value_id,omitempty"`

	// Expect is the expected cell or value (used by cell and value).
	Expect any `yaml:"expect,omitempty"`

	// JSON is the expected serialization (used by json).
	JSON string `yaml:"json,omitempty"`

	// Listener is the listener id (used by fired, not_fired, fire_count).
	Listener string `yaml:"listener,omitempty"`

	// IDs restricts fired to firings for these concrete ids.
	IDs []string `yaml:"ids,omitempty"`

	// Count is the expected number of firings (used by fire_count).
	Count int `yaml:"count,omitempty"`

	// Listeners is the expected first-firing order (used by trace_order).
	Listeners []string `yaml:"listeners,omitempty"`
}

// Assertion type constants.
const (
	AssertContent    = "content"
	AssertCell       = "cell"
	AssertValue      = "value"
	AssertJSON       = "json"
	AssertFired      = "fired"
	AssertNotFired   = "not_fired"
	AssertFireCount  = "fire_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative schema path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	if scenario.Schema != "" {
		if _, err := os.Stat(scenario.Schema); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: schema file not found: %s", scenario.Schema)
		}
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML that is already in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
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

	seen := make(map[string]bool, len(s.Listeners))
	for i, l := range s.Listeners {
		if err := validateListener(i, &l); err != nil {
			return err
		}
		if seen[l.ID] {
			return fmt.Errorf("listeners[%d]: duplicate id %q", i, l.ID)
		}
		seen[l.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(fmt.Sprintf("steps[%d]", i), &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, seen); err != nil {
			return err
		}
	}

	return nil
}

func validateListener(index int, l *ListenerSpec) error {
	if l.ID == "" {
		return fmt.Errorf("listeners[%d]: id is required", index)
	}
	category, err := listener.ParseCategory(l.Category)
	if err != nil {
		return fmt.Errorf("listeners[%d]: %w", index, err)
	}
	if len(l.Path) != category.Depth() {
		return fmt.Errorf("listeners[%d]: %s takes %d path segments, got %d",
			index, category, category.Depth(), len(l.Path))
	}
	if l.Mutator && isTransactionCategory(category) {
		return fmt.Errorf("listeners[%d]: %s listeners cannot be mutators", index, category)
	}
	if l.Write != nil {
		if err := validateStep(fmt.Sprintf("listeners[%d].write", index), l.Write); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step *Step) error {
	switch {
	case step.Op == "" && len(step.Transaction) == 0:
		return fmt.Errorf("%s: op or transaction is required", where)
	case step.Op != "" && len(step.Transaction) > 0:
		return fmt.Errorf("%s: op and transaction are mutually exclusive", where)
	case step.Rollback && len(step.Transaction) == 0:
		return fmt.Errorf("%s: rollback requires a transaction", where)
	}

	for i, nested := range step.Transaction {
		if err := validateStep(fmt.Sprintf("%s.transaction[%d]", where, i), &nested); err != nil {
			return err
		}
	}
	if step.Op == "" {
		return nil
	}

	arity, ok := opArity[step.Op]
	if !ok {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if len(step.Args) < arity.min || len(step.Args) > arity.max {
		if arity.min == arity.max {
			return fmt.Errorf("%s: %s takes %d args, got %d", where, step.Op, arity.min, len(step.Args))
		}
		return fmt.Errorf("%s: %s takes %d to %d args, got %d", where, step.Op, arity.min, arity.max, len(step.Args))
	}
	if step.Expect != "" && step.Op != "add_row" {
		return fmt.Errorf("%s: expect is only supported by add_row", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, listeners map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertContent, AssertJSON:
	case AssertCell:
		if a.Table == "" || a.Row == "" || a.Cell == "" {
			return fmt.Errorf("assertions[%d]: table, row and cell are required for cell", index)
		}
	case AssertValue:
		if a.ValueID == "" {
			return fmt.Errorf("assertions[%d]: value_id is required for value", index)
		}
	case AssertFired, AssertNotFired, AssertFireCount:
		if a.Listener == "" {
			return fmt.Errorf("assertions[%d]: listener is required for %s", index, a.Type)
		}
		if !listeners[a.Listener] {
			return fmt.Errorf("assertions[%d]: unknown listener %q", index, a.Listener)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for fire_count", index)
		}
	case AssertTraceOrder:
		if len(a.Listeners) == 0 {
			return fmt.Errorf("assertions[%d]: listeners list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func isTransactionCategory(c listener.Category) bool {
	return c == listener.StartTransaction || c == listener.WillFinishTransaction || c == listener.DidFinishTransaction
}
