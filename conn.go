package sqlitell

import (
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/sqlitell/internal/native"
)

// Conn is an open database handle.
//
// A Conn and the statements prepared from it must be used by one goroutine
// at a time.
type Conn struct {
	db     *native.DB
	path   string
	logger *slog.Logger
}

// Open opens the database at path for reading and writing, creating it if
// it does not exist. Use Memory for a temporary in-memory database.
func Open(path string) (*Conn, error) {
	return OpenOptions{}.Open(path)
}

// Path returns the path the connection was opened with.
func (c *Conn) Path() string { return c.path }

// Version returns the engine version, e.g. "3.46.0".
func Version() string { return native.Version }

// VersionNumber returns the engine version as X*1000000 + Y*1000 + Z.
func VersionNumber() int { return native.VersionNumber }

// Close releases the handle.
//
// Close succeeds exactly once; further calls return a KindMisuse error.
// Statements must be finalized first. If some are still alive the engine
// keeps the handle until the last of them is finalized and a warning is
// logged.
func (c *Conn) Close() error {
	if c.db.Closed() {
		return misuse(OpClose, "connection already closed")
	}
	if n := c.db.Live(); n > 0 {
		c.logger.Warn("closing connection with live statements", "path", c.path, "statements", n)
	}
	if err := c.db.Close(); err != nil {
		return fromNative(OpClose, err, "")
	}
	c.logger.Debug("closed database", "path", c.path)
	return nil
}

func (c *Conn) checkOpen(op Op) error {
	if c.db.Closed() {
		return misuse(op, "connection is closed")
	}
	return nil
}

// Execute runs every statement in sql to completion, discarding any rows.
// It stops at the first failure and returns it as an OpExecute error
// carrying the text of the failing statement.
func (c *Conn) Execute(sql string) error {
	if err := c.checkOpen(OpExecute); err != nil {
		return err
	}
	rest := sql
	for strings.TrimSpace(rest) != "" {
		stmt, tail, err := c.db.Prepare(rest)
		if err != nil {
			return fromNative(OpExecute, err, strings.TrimSpace(rest))
		}
		if stmt == nil {
			if tail == rest || tail == "" {
				break
			}
			rest = tail
			continue
		}
		text := strings.TrimSpace(stmt.SQL())
		for {
			row, err := stmt.Step()
			if err != nil {
				e := fromNative(OpExecute, err, text)
				_ = stmt.Finalize()
				return e
			}
			if !row {
				break
			}
		}
		if err := stmt.Finalize(); err != nil {
			return fromNative(OpExecute, err, text)
		}
		rest = tail
	}
	return nil
}

// Changes reports the rows modified by the most recent INSERT, UPDATE or
// DELETE on this connection.
func (c *Conn) Changes() int {
	if c.db.Closed() {
		return 0
	}
	return c.db.Changes()
}

// TotalChanges reports the rows modified since the connection was opened.
func (c *Conn) TotalChanges() int {
	if c.db.Closed() {
		return 0
	}
	return c.db.TotalChanges()
}

// LastInsertRowID reports the rowid of the most recent successful INSERT.
func (c *Conn) LastInsertRowID() int64 {
	if c.db.Closed() {
		return 0
	}
	return c.db.LastInsertRowID()
}

// Autocommit reports whether the connection is outside an explicit
// transaction.
func (c *Conn) Autocommit() bool {
	if c.db.Closed() {
		return true
	}
	return c.db.Autocommit()
}

// SetBusyTimeout makes the connection sleep and retry for up to d when a
// table is locked. Zero or negative turns waiting off. It replaces any
// handler set with SetBusyHandler.
func (c *Conn) SetBusyTimeout(d time.Duration) {
	if c.db.Closed() {
		return
	}
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	c.db.BusyTimeout(int32(ms))
}

// SetBusyHandler installs f as the busy handler. f receives the number of
// prior attempts for the same lock event and returns false to give up, in
// which case the operation fails with KindBusy. A nil f removes the
// handler.
func (c *Conn) SetBusyHandler(f func(attempt int) bool) {
	if c.db.Closed() {
		return
	}
	c.db.SetBusyHandler(f)
}
