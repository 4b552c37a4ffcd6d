package sqlitell

import (
	"strings"

	"github.com/roach88/sqlitell/internal/native"
)

// State is where a statement is in its execution cycle.
type State uint8

const (
	// StateReady: freshly prepared or reset. Parameters may be bound.
	StateReady State = iota
	// StateRow: the last Step produced a row that can be read.
	StateRow
	// StateDone: execution finished or failed. Only Reset or Finalize
	// are accepted.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRow:
		return "row"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Stmt is a compiled SQL statement.
//
// A Stmt does not keep its Conn open: every Stmt must be finalized before
// the Conn it came from is closed. Use Conn.WithStmt where the statement's
// life fits in one call.
type Stmt struct {
	conn   *Conn
	ns     *native.Stmt
	sql    string
	state  State
	failed bool
	cols   int
	params int
}

// Prepare compiles exactly one SQL statement.
//
// The returned Stmt is not tied to the Conn's lifetime: the caller must
// Finalize it before calling Close on c. Empty SQL, SQL made only of
// comments, and SQL holding more than one statement are KindMisuse
// errors. On failure no native handle is retained.
func (c *Conn) Prepare(sql string) (*Stmt, error) {
	if err := c.checkOpen(OpPrepare); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sql) == "" {
		e := misuse(OpPrepare, "empty statement")
		return nil, e
	}
	ns, tail, err := c.db.Prepare(sql)
	if err != nil {
		e := fromNative(OpPrepare, err, sql)
		c.logger.Debug("prepare failed", "sql", sql, "error", e)
		return nil, e
	}
	if ns == nil {
		e := misuse(OpPrepare, "no statement in SQL")
		e.SQL = sql
		return nil, e
	}
	if err := c.checkTail(tail); err != nil {
		_ = ns.Finalize()
		err.SQL = sql
		return nil, err
	}
	return c.newStmt(ns, sql), nil
}

func (c *Conn) newStmt(ns *native.Stmt, sql string) *Stmt {
	return &Stmt{
		conn:   c,
		ns:     ns,
		sql:    sql,
		cols:   ns.ColumnCount(),
		params: ns.BindParameterCount(),
	}
}

// checkTail verifies that the text after the first statement holds
// nothing but separators and comments.
func (c *Conn) checkTail(tail string) *Error {
	for strings.TrimSpace(tail) != "" {
		ns, next, err := c.db.Prepare(tail)
		if err != nil {
			return fromNative(OpPrepare, err, "")
		}
		if ns != nil {
			_ = ns.Finalize()
			return misuse(OpPrepare, "multiple statements in SQL")
		}
		if next == tail || next == "" {
			break
		}
		tail = next
	}
	return nil
}

// WithStmt prepares sql, passes the statement to fn and finalizes it when
// fn returns, whatever the outcome. fn must not retain the statement.
func (c *Conn) WithStmt(sql string, fn func(*Stmt) error) (err error) {
	stmt, err := c.Prepare(sql)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := stmt.Finalize(); err == nil {
			err = ferr
		}
	}()
	return fn(stmt)
}

func (s *Stmt) check(op Op) *Error {
	if s.ns.Finalized() {
		return misuse(op, "statement is finalized")
	}
	if s.conn.db.Closed() {
		return misuse(op, "connection is closed")
	}
	return nil
}

func (s *Stmt) withSQL(e *Error) *Error {
	e.SQL = s.sql
	return e
}

// State reports the current state.
func (s *Stmt) State() State { return s.state }

// SQL returns the text the statement was prepared from.
func (s *Stmt) SQL() string { return s.sql }

// Step advances execution. It returns StateRow when a row is available
// and StateDone when execution has finished.
//
// Stepping a statement in StateDone, or one whose previous Step failed,
// is a KindMisuse error until Reset is called. An engine failure leaves
// the statement in StateDone.
func (s *Stmt) Step() (State, error) {
	if err := s.check(OpStep); err != nil {
		return s.state, s.withSQL(err)
	}
	if s.failed {
		return s.state, s.withSQL(misuse(OpStep, "previous step failed, statement must be reset"))
	}
	if s.state == StateDone {
		return s.state, s.withSQL(misuse(OpStep, "statement is done, it must be reset"))
	}
	row, err := s.ns.Step()
	if err != nil {
		s.failed = true
		s.state = StateDone
		return s.state, fromNative(OpStep, err, s.sql)
	}
	if row {
		s.state = StateRow
	} else {
		s.state = StateDone
	}
	return s.state, nil
}

// Reset returns the statement to StateReady. Bound parameters are kept.
func (s *Stmt) Reset() error {
	if err := s.check(OpReset); err != nil {
		return s.withSQL(err)
	}
	err := s.ns.Reset()
	failed := s.failed
	s.state = StateReady
	s.failed = false
	if err != nil && !failed {
		// The engine repeats the error of a failed step; it was
		// already reported by Step.
		return fromNative(OpReset, err, s.sql)
	}
	return nil
}

// ClearBindings sets every parameter back to NULL. It does not reset the
// statement.
func (s *Stmt) ClearBindings() error {
	if err := s.check(OpBind); err != nil {
		return s.withSQL(err)
	}
	if err := s.ns.ClearBindings(); err != nil {
		return fromNative(OpBind, err, s.sql)
	}
	return nil
}

// Finalize destroys the statement. It may be called in any state and
// after the Conn was closed; calling it again is a no-op.
func (s *Stmt) Finalize() error {
	if s.ns.Finalized() {
		return nil
	}
	err := s.ns.Finalize()
	failed := s.failed
	s.state = StateDone
	if err != nil && !failed {
		return fromNative(OpFinalize, err, s.sql)
	}
	return nil
}

// ReadOnly reports whether the statement makes no direct changes to the
// database file.
func (s *Stmt) ReadOnly() bool {
	if s.check(OpRead) != nil {
		return false
	}
	return s.ns.ReadOnly()
}

// ColumnCount reports the number of result columns; 0 for statements that
// return no data.
func (s *Stmt) ColumnCount() int { return s.cols }

func (s *Stmt) checkColumn(col int) *Error {
	if col < 0 || col >= s.cols {
		return s.withSQL(newError(OpRead, KindIndexOutOfRange, col,
			"column %d out of range [0, %d)", col, s.cols))
	}
	return nil
}

// ColumnName returns the name of a result column.
func (s *Stmt) ColumnName(col int) (string, error) {
	if err := s.check(OpRead); err != nil {
		return "", s.withSQL(err)
	}
	if err := s.checkColumn(col); err != nil {
		return "", err
	}
	name, ok := s.ns.ColumnName(col)
	if !ok {
		return "", s.withSQL(newError(OpRead, KindNoMemory, col, "column name unavailable"))
	}
	return name, nil
}

// ColumnNames returns the names of all result columns in order.
func (s *Stmt) ColumnNames() ([]string, error) {
	names := make([]string, s.cols)
	for i := range names {
		name, err := s.ColumnName(i)
		if err != nil {
			return nil, err
		}
		names[i] = name
	}
	return names, nil
}

// ColumnIndex returns the index of the first column with the given name.
func (s *Stmt) ColumnIndex(name string) (int, bool) {
	for i := 0; i < s.cols; i++ {
		if n, err := s.ColumnName(i); err == nil && n == name {
			return i, true
		}
	}
	return -1, false
}

// DeclType returns the declared type of a result column that comes
// directly from a table, or "".
func (s *Stmt) DeclType(col int) (string, error) {
	if err := s.check(OpRead); err != nil {
		return "", s.withSQL(err)
	}
	if err := s.checkColumn(col); err != nil {
		return "", err
	}
	return s.ns.ColumnDeclType(col), nil
}

// ColumnType reports the storage class of a column in the current row.
func (s *Stmt) ColumnType(col int) (Type, error) {
	if err := s.checkRow(col); err != nil {
		return TypeNull, err
	}
	return typeFromNative(s.ns.ColumnType(col)), nil
}
