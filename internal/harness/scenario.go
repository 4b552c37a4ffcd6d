package harness

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlitell"
)

// Scenario is a scripted run against a fresh connection.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Setup is SQL executed before the first step. It is not traced and
	// must succeed.
	Setup string `yaml:"setup,omitempty"`

	// Steps are run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one call against the connection or the current statement.
// Exactly one of the action fields is set.
type Step struct {
	Execute    string  `yaml:"execute,omitempty"`
	Prepare    string  `yaml:"prepare,omitempty"`
	Bind       []any   `yaml:"bind,omitempty"`
	Step       string  `yaml:"step,omitempty"` // "row" or "done"
	ExpectRows [][]any `yaml:"expect_rows,omitempty"`
	Reset      bool    `yaml:"reset,omitempty"`
	Finalize   bool    `yaml:"finalize,omitempty"`

	// Values is the row expected from a step that yields one.
	Values []any `yaml:"values,omitempty"`

	// ExpectError makes the step pass only if it fails this way.
	ExpectError *ExpectError `yaml:"expect_error,omitempty"`
}

// ExpectError names the Op and Kind of an expected *sqlitell.Error.
type ExpectError struct {
	Op   string `yaml:"op"`
	Kind string `yaml:"kind"`
}

// Assertion is a check against the connection after the steps.
type Assertion struct {
	Type       string  `yaml:"type"`
	SQL        string  `yaml:"sql,omitempty"`
	Rows       [][]any `yaml:"rows,omitempty"`
	Count      *int    `yaml:"count,omitempty"`
	Autocommit *bool   `yaml:"autocommit,omitempty"`
}

// Assertion type constants.
const (
	AssertQuery        = "query"
	AssertTotalChanges = "total_changes"
	AssertAutocommit   = "autocommit"
)

// Step states.
const (
	StepRow  = "row"
	StepDone = "done"
)

// action reports the name of the step's action and how many are set.
func (s *Step) action() (string, int) {
	var name string
	n := 0
	set := func(ok bool, a string) {
		if ok {
			name = a
			n++
		}
	}
	set(s.Execute != "", "execute")
	set(s.Prepare != "", "prepare")
	set(s.Bind != nil, "bind")
	set(s.Step != "", "step")
	set(s.ExpectRows != nil, "expect_rows")
	set(s.Reset, "reset")
	set(s.Finalize, "finalize")
	return name, n
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
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

// LoadDir loads every .yaml and .yml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	seen := make(map[string]string)
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%s: scenario name %q already used by %s", name, s.Name, prev)
		}
		seen[s.Name] = name
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

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

	prepared := false
	for i := range s.Steps {
		step := &s.Steps[i]
		name, n := step.action()
		switch {
		case n == 0:
			return fmt.Errorf("steps[%d]: an action is required", i)
		case n > 1:
			return fmt.Errorf("steps[%d]: exactly one action is allowed", i)
		}

		switch name {
		case "prepare":
			prepared = true
		case "execute":
		default:
			if !prepared {
				return fmt.Errorf("steps[%d]: %s before any prepare", i, name)
			}
		}

		if name == "step" && step.Step != StepRow && step.Step != StepDone {
			return fmt.Errorf("steps[%d]: step must be %q or %q, got %q", i, StepRow, StepDone, step.Step)
		}
		if step.Values != nil && step.Step != StepRow {
			return fmt.Errorf("steps[%d]: values requires step: row", i)
		}
		if err := checkValues(step.Bind); err != nil {
			return fmt.Errorf("steps[%d].bind: %w", i, err)
		}
		if err := checkValues(step.Values); err != nil {
			return fmt.Errorf("steps[%d].values: %w", i, err)
		}
		for j, row := range step.ExpectRows {
			if err := checkValues(row); err != nil {
				return fmt.Errorf("steps[%d].expect_rows[%d]: %w", i, j, err)
			}
		}
		if e := step.ExpectError; e != nil {
			if _, ok := lookupOp(e.Op); !ok {
				return fmt.Errorf("steps[%d].expect_error: unknown op %q", i, e.Op)
			}
			if _, ok := lookupKind(e.Kind); !ok {
				return fmt.Errorf("steps[%d].expect_error: unknown kind %q", i, e.Kind)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertQuery:
		if a.SQL == "" {
			return fmt.Errorf("assertions[%d]: sql is required for query", index)
		}
		for j, row := range a.Rows {
			if err := checkValues(row); err != nil {
				return fmt.Errorf("assertions[%d].rows[%d]: %w", index, j, err)
			}
		}
	case AssertTotalChanges:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for total_changes", index)
		}
	case AssertAutocommit:
		if a.Autocommit == nil {
			return fmt.Errorf("assertions[%d]: autocommit is required", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func checkValues(vs []any) error {
	for i, v := range vs {
		if _, err := toValue(v); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	return nil
}

// toValue converts a decoded YAML scalar into a Value.
func toValue(v any) (sqlitell.Value, error) {
	switch v := v.(type) {
	case nil:
		return sqlitell.Null(), nil
	case bool:
		if v {
			return sqlitell.Integer(1), nil
		}
		return sqlitell.Integer(0), nil
	case int:
		return sqlitell.Integer(int64(v)), nil
	case int64:
		return sqlitell.Integer(v), nil
	case uint64:
		return sqlitell.Value{}, fmt.Errorf("integer %d out of range", v)
	case float64:
		return sqlitell.Float(v), nil
	case string:
		return sqlitell.Text(v), nil
	case map[string]any:
		h, ok := v["blob"].(string)
		if !ok || len(v) != 1 {
			return sqlitell.Value{}, fmt.Errorf("mapping values must be {blob: hex}")
		}
		b, err := hex.DecodeString(h)
		if err != nil {
			return sqlitell.Value{}, fmt.Errorf("invalid blob: %w", err)
		}
		return sqlitell.Blob(b), nil
	default:
		return sqlitell.Value{}, fmt.Errorf("unsupported value %v (%T)", v, v)
	}
}

func toValues(vs []any) []sqlitell.Value {
	out := make([]sqlitell.Value, len(vs))
	for i, v := range vs {
		// Values were checked by validateScenario.
		out[i], _ = toValue(v)
	}
	return out
}

func lookupOp(name string) (sqlitell.Op, bool) {
	for op := sqlitell.OpOpen; op <= sqlitell.OpFinalize; op++ {
		if op.String() == name {
			return op, true
		}
	}
	return 0, false
}

func lookupKind(name string) (sqlitell.Kind, bool) {
	for k := sqlitell.KindGeneric; k <= sqlitell.KindTypeMismatch; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}
