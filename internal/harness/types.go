package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sqlitell"
)

// TraceEvent is one traced call and its outcome.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Input   string `json:"input,omitempty"`
	Outcome string `json:"outcome"`
}

// String renders the event as a trace line.
func (e TraceEvent) String() string {
	if e.Input == "" {
		return fmt.Sprintf("%d. %s -> %s", e.Seq, e.Op, e.Outcome)
	}
	return fmt.Sprintf("%d. %s %s -> %s", e.Seq, e.Op, e.Input, e.Outcome)
}

// Result is the outcome of a scenario run.
type Result struct {
	Name string `json:"name"`

	// Pass is true when every step expectation and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

func (r *Result) addTrace(op, input, outcome string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     len(r.Trace) + 1,
		Op:      op,
		Input:   input,
		Outcome: outcome,
	})
}

// Text renders the result in the golden trace format.
func (r *Result) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", r.Name)
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "error: %s\n", e)
	}
	fmt.Fprintf(&b, "pass: %t\n", r.Pass)
	return b.String()
}

// formatValue renders v as SQL literal text.
func formatValue(v sqlitell.Value) string {
	if s, ok := v.AsText(); ok {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	return v.String()
}

func formatRow(vs []sqlitell.Value) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatRows(rows [][]sqlitell.Value) string {
	parts := make([]string, len(rows))
	for i, row := range rows {
		parts[i] = formatRow(row)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatError(err error) string {
	var e *sqlitell.Error
	if errors.As(err, &e) {
		return fmt.Sprintf("error %s/%s", e.Op, e.Kind)
	}
	return "error " + err.Error()
}

func rowsEqual(a, b [][]sqlitell.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !rowEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func rowEqual(a, b []sqlitell.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
