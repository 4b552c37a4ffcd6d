package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/sqlitell"
)

// Harness runs scenarios. Each run gets its own in-memory database.
type Harness struct {
	logger *slog.Logger
}

// New returns a Harness that logs each traced call at debug level. A nil
// logger discards the output.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{logger: logger}
}

// Run executes a scenario with a silent Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New(nil).Run(scenario)
}

// Run executes a scenario and returns its result. Failed expectations are
// reported in the Result; the error is for scenarios that could not run
// at all, such as failing setup SQL.
func (h *Harness) Run(scenario *Scenario) (*Result, error) {
	conn, err := sqlitell.OpenOptions{Logger: h.logger}.Open(sqlitell.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	if scenario.Setup != "" {
		if err := conn.Execute(scenario.Setup); err != nil {
			return nil, fmt.Errorf("failed to execute setup: %w", err)
		}
	}

	r := &run{
		conn:   conn,
		result: NewResult(scenario.Name),
		logger: h.logger.With("scenario", scenario.Name),
	}
	for i := range scenario.Steps {
		r.step(i, &scenario.Steps[i])
	}
	r.finalizeAll()

	for _, msg := range EvaluateAssertions(conn, scenario.Assertions) {
		r.result.AddError("%s", msg)
	}
	return r.result, nil
}

// run is the state of one scenario execution.
type run struct {
	conn    *sqlitell.Conn
	current *sqlitell.Stmt
	stmts   []*sqlitell.Stmt
	result  *Result
	logger  *slog.Logger
}

func (r *run) step(i int, step *Step) {
	name, _ := step.action()

	var (
		input   string
		outcome = "ok"
		err     error
	)

	if name != "execute" && name != "prepare" && r.current == nil {
		r.result.addTrace(name, "", "skipped")
		r.result.AddError("steps[%d]: %s without a prepared statement", i, name)
		return
	}
	stmt := r.current

	switch name {
	case "execute":
		input = strconv.Quote(step.Execute)
		err = r.conn.Execute(step.Execute)

	case "prepare":
		input = strconv.Quote(step.Prepare)
		r.current, err = r.conn.Prepare(step.Prepare)
		if err == nil {
			r.stmts = append(r.stmts, r.current)
			outcome = fmt.Sprintf("ok (params=%d, columns=%d)", r.current.ParameterCount(), r.current.ColumnCount())
		}

	case "bind":
		values := toValues(step.Bind)
		input = formatRow(values)
		for j, v := range values {
			if err = stmt.BindValue(j+1, v); err != nil {
				break
			}
		}

	case "step":
		input = step.Step
		outcome, err = r.stepOnce(i, step, stmt)

	case "expect_rows":
		var rows [][]sqlitell.Value
		rows, err = collectRows(stmt)
		outcome = "rows " + formatRows(rows)
		if err == nil && step.ExpectError == nil {
			want := make([][]sqlitell.Value, len(step.ExpectRows))
			for j, row := range step.ExpectRows {
				want[j] = toValues(row)
			}
			if !rowsEqual(rows, want) {
				r.result.AddError("steps[%d]: expected rows %s, got %s", i, formatRows(want), formatRows(rows))
			}
		}

	case "reset":
		err = stmt.Reset()

	case "finalize":
		err = stmt.Finalize()
	}

	if err != nil {
		outcome = formatError(err)
	}
	r.result.addTrace(name, input, outcome)
	r.logger.Debug("step", "seq", len(r.result.Trace), "op", name, "outcome", outcome)
	r.checkError(i, step.ExpectError, err)
}

// stepOnce steps stmt and checks the resulting state and row.
func (r *run) stepOnce(i int, step *Step, stmt *sqlitell.Stmt) (string, error) {
	state, err := stmt.Step()
	if err != nil {
		return "", err
	}

	outcome := state.String()
	var row []sqlitell.Value
	if state == sqlitell.StateRow {
		if row, err = readRow(stmt); err != nil {
			return "", err
		}
		outcome = "row " + formatRow(row)
	}

	if step.ExpectError != nil {
		return outcome, nil
	}
	if state.String() != step.Step {
		r.result.AddError("steps[%d]: expected %s, got %s", i, step.Step, state)
	} else if step.Values != nil {
		if want := toValues(step.Values); !rowEqual(row, want) {
			r.result.AddError("steps[%d]: expected row %s, got %s", i, formatRow(want), formatRow(row))
		}
	}
	return outcome, nil
}

func (r *run) checkError(i int, want *ExpectError, err error) {
	switch {
	case want == nil && err != nil:
		r.result.AddError("steps[%d]: unexpected error: %v", i, err)
	case want == nil:
	case err == nil:
		r.result.AddError("steps[%d]: expected error %s/%s, got success", i, want.Op, want.Kind)
	default:
		var e *sqlitell.Error
		if !errors.As(err, &e) || e.Op.String() != want.Op || e.Kind.String() != want.Kind {
			r.result.AddError("steps[%d]: expected error %s/%s, got %s", i, want.Op, want.Kind, formatError(err))
		}
	}
}

// finalizeAll finalizes every statement the scenario prepared. Errors are
// ignored; a statement's failures were already traced by its own steps.
func (r *run) finalizeAll() {
	for _, stmt := range r.stmts {
		_ = stmt.Finalize()
	}
	r.stmts = nil
	r.current = nil
}
