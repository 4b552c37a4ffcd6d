package harness

import (
	"fmt"

	"github.com/roach88/sqlitell"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %s failed: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// EvaluateAssertions checks each assertion against conn and returns the
// failure messages, in order.
func EvaluateAssertions(conn *sqlitell.Conn, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertQuery:
			err = assertQuery(conn, a)
		case AssertTotalChanges:
			err = assertTotalChanges(conn, a)
		case AssertAutocommit:
			err = assertAutocommit(conn, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func assertQuery(conn *sqlitell.Conn, a Assertion) error {
	want := make([][]sqlitell.Value, len(a.Rows))
	for i, row := range a.Rows {
		want[i] = toValues(row)
	}

	var got [][]sqlitell.Value
	err := conn.WithStmt(a.SQL, func(stmt *sqlitell.Stmt) error {
		var err error
		got, err = collectRows(stmt)
		return err
	})
	if err != nil {
		return &AssertionError{
			Type:     AssertQuery,
			Expected: formatRows(want),
			Actual:   formatError(err),
		}
	}
	if !rowsEqual(got, want) {
		return &AssertionError{
			Type:     AssertQuery,
			Expected: formatRows(want),
			Actual:   formatRows(got),
		}
	}
	return nil
}

func assertTotalChanges(conn *sqlitell.Conn, a Assertion) error {
	if got := conn.TotalChanges(); got != *a.Count {
		return &AssertionError{
			Type:     AssertTotalChanges,
			Expected: fmt.Sprint(*a.Count),
			Actual:   fmt.Sprint(got),
		}
	}
	return nil
}

func assertAutocommit(conn *sqlitell.Conn, a Assertion) error {
	if got := conn.Autocommit(); got != *a.Autocommit {
		return &AssertionError{
			Type:     AssertAutocommit,
			Expected: fmt.Sprint(*a.Autocommit),
			Actual:   fmt.Sprint(got),
		}
	}
	return nil
}

// collectRows steps stmt to completion and reads every column of every row.
func collectRows(stmt *sqlitell.Stmt) ([][]sqlitell.Value, error) {
	rows := [][]sqlitell.Value{}
	for {
		state, err := stmt.Step()
		if err != nil {
			return rows, err
		}
		if state == sqlitell.StateDone {
			return rows, nil
		}
		row, err := readRow(stmt)
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func readRow(stmt *sqlitell.Stmt) ([]sqlitell.Value, error) {
	row := make([]sqlitell.Value, stmt.ColumnCount())
	for col := range row {
		v, err := stmt.ReadValue(col)
		if err != nil {
			return nil, err
		}
		row[col] = v
	}
	return row, nil
}
