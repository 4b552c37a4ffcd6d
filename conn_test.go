package sqlitell

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestConn opens an in-memory connection closed at the end of the test.
func openTestConn(t *testing.T) *Conn {
	t.Helper()
	c, err := Open(Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// openUsers opens an in-memory connection holding the users table.
func openUsers(t *testing.T) *Conn {
	t.Helper()
	c := openTestConn(t)
	require.NoError(t, c.Execute(`
		CREATE TABLE users (id INTEGER, name TEXT, age REAL, photo BLOB, email TEXT);
		INSERT INTO users VALUES (1, 'Alice', 42.69, X'4269', NULL);
	`))
	return c
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Execute("CREATE TABLE t (x)"))
	require.NoError(t, c.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "test.db")

	c, err := Open(path)
	require.Error(t, err)
	assert.Nil(t, c)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpOpen, e.Op)
	assert.Equal(t, KindCantOpen, e.Kind)
	assert.Contains(t, e.Message, path)
}

func TestOpen_RejectsNULInPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.db\x00b.db")

	c, err := Open(path)
	require.Error(t, err)
	assert.Nil(t, c)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpOpen, e.Op)
	assert.Equal(t, KindMisuse, e.Kind)

	_, statErr := os.Stat(filepath.Join(dir, "a.db"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpen_ReadOnlyWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.db")

	_, err := OpenOptions{}.ReadOnly().Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, KindCantOpen)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOpen_ReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Execute("CREATE TABLE t (x INTEGER)"))
	require.NoError(t, c.Close())

	ro, err := OpenOptions{}.ReadOnly().Open(path)
	require.NoError(t, err)
	defer ro.Close()

	err = ro.Execute("INSERT INTO t VALUES (1)")
	require.Error(t, err)
	assert.ErrorIs(t, err, KindReadOnly)
}

func TestOpenOptions_Pragmas(t *testing.T) {
	c, err := OpenOptions{Pragmas: []string{"foreign_keys = ON", "PRAGMA user_version = 7"}}.Open(Memory)
	require.NoError(t, err)
	defer c.Close()

	err = c.WithStmt("PRAGMA user_version", func(s *Stmt) error {
		_, err := s.Step()
		require.NoError(t, err)
		v, err := s.ReadInt64(0)
		require.NoError(t, err)
		assert.Equal(t, int64(7), v)
		return nil
	})
	require.NoError(t, err)
}

func TestOpenOptions_BadPragmaClosesHandle(t *testing.T) {
	c, err := OpenOptions{Pragmas: []string{"nonsense ("}}.Open(Memory)
	require.Error(t, err)
	assert.Nil(t, c)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpOpen, e.Op)
	assert.Equal(t, "PRAGMA nonsense (", e.SQL)
}

func TestOpenFlags_String(t *testing.T) {
	assert.Equal(t, "readwrite|create", DefaultFlags.String())
	assert.Equal(t, "readonly", OpenOptions{}.ReadOnly().Flags.String())
	assert.Equal(t, "0", OpenFlags(0).String())

	f, err := ParseOpenFlag("SharedCache")
	require.NoError(t, err)
	assert.Equal(t, OpenSharedCache, f)

	_, err = ParseOpenFlag("bogus")
	assert.Error(t, err)
}

func TestClose_Twice(t *testing.T) {
	c, err := Open(Memory)
	require.NoError(t, err)

	require.NoError(t, c.Close())

	err = c.Close()
	require.Error(t, err)
	assert.True(t, IsMisuse(err))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpClose, e.Op)
}

func TestClose_WithLiveStatement(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, err := OpenOptions{Logger: logger}.Open(Memory)
	require.NoError(t, err)

	stmt, err := c.Prepare("SELECT 1")
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.Contains(t, logs.String(), "closing connection with live statements")

	_, err = stmt.Step()
	assert.True(t, IsMisuse(err))

	assert.NoError(t, stmt.Finalize())
	assert.NoError(t, stmt.Finalize())
}

func TestClosedConnection_RejectsWork(t *testing.T) {
	c, err := Open(Memory)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.True(t, IsMisuse(c.Execute("SELECT 1")))
	_, err = c.Prepare("SELECT 1")
	assert.True(t, IsMisuse(err))
	assert.True(t, IsMisuse(c.Iterate("SELECT 1", func([]Pair) bool { return true })))
	assert.Equal(t, 0, c.Changes())
}

func TestExecute_MultipleStatements(t *testing.T) {
	c := openTestConn(t)

	err := c.Execute(`
		-- schema
		CREATE TABLE t (x INTEGER);
		INSERT INTO t VALUES (1);;
		INSERT INTO t VALUES (2);
		SELECT * FROM t;
	`)
	require.NoError(t, err)

	var n int64
	require.NoError(t, c.WithStmt("SELECT count(*) FROM t", func(s *Stmt) error {
		if _, err := s.Step(); err != nil {
			return err
		}
		n, err = s.ReadInt64(0)
		return err
	}))
	assert.Equal(t, int64(2), n)
}

func TestExecute_StopsAtFirstFailure(t *testing.T) {
	c := openTestConn(t)

	err := c.Execute(`
		CREATE TABLE t (x INTEGER UNIQUE);
		INSERT INTO t VALUES (1);
		INSERT INTO t VALUES (1);
		INSERT INTO t VALUES (2);
	`)
	require.Error(t, err)
	assert.True(t, IsConstraint(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpExecute, e.Op)
	assert.Equal(t, "INSERT INTO t VALUES (1);", e.SQL)
	assert.Equal(t, codeConstraint, e.Code&0xff)

	// The statement after the failure never ran.
	var rows []string
	require.NoError(t, c.Iterate("SELECT x FROM t", func(row []Pair) bool {
		rows = append(rows, *row[0].Value)
		return true
	}))
	assert.Equal(t, []string{"1"}, rows)
}

func TestExecute_RejectsNUL(t *testing.T) {
	c := openTestConn(t)

	err := c.Execute("CREATE TABLE a (x);\x00CREATE TABLE b (x);")
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpExecute, e.Op)
	assert.Equal(t, KindMisuse, e.Kind)
	assert.Contains(t, e.Message, "NUL")

	// Nothing ran, not even the statement before the NUL.
	_, err = c.Prepare("SELECT * FROM a")
	assert.ErrorContains(t, err, "no such table: a")
}

func TestExecute_SyntaxError(t *testing.T) {
	c := openTestConn(t)

	err := c.Execute("CREATE TABLE t (x); SELEC 1")
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpExecute, e.Op)
	assert.Equal(t, KindGeneric, e.Kind)
	assert.Equal(t, "SELEC 1", e.SQL)
	assert.Contains(t, e.Message, "syntax error")
}

func TestChangeCounts(t *testing.T) {
	c := openTestConn(t)

	require.NoError(t, c.Execute("CREATE TABLE t (x INTEGER)"))
	require.NoError(t, c.Execute("INSERT INTO t VALUES (1), (2), (3)"))
	assert.Equal(t, 3, c.Changes())
	assert.Equal(t, int64(3), c.LastInsertRowID())

	require.NoError(t, c.Execute("DELETE FROM t WHERE x > 1"))
	assert.Equal(t, 2, c.Changes())
	assert.Equal(t, 5, c.TotalChanges())
}

func TestAutocommit(t *testing.T) {
	c := openTestConn(t)

	assert.True(t, c.Autocommit())
	require.NoError(t, c.Execute("BEGIN"))
	assert.False(t, c.Autocommit())
	require.NoError(t, c.Execute("COMMIT"))
	assert.True(t, c.Autocommit())
}

// lockedPair returns two connections to one file where the first holds an
// exclusive lock.
func lockedPair(t *testing.T) (holder, waiter *Conn) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "busy.db")

	holder, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = holder.Close() })
	require.NoError(t, holder.Execute("CREATE TABLE t (x INTEGER)"))

	waiter, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = waiter.Close() })

	require.NoError(t, holder.Execute("BEGIN EXCLUSIVE"))
	return holder, waiter
}

func TestBusyHandler(t *testing.T) {
	holder, waiter := lockedPair(t)

	var attempts []int
	waiter.SetBusyHandler(func(attempt int) bool {
		attempts = append(attempts, attempt)
		return attempt < 2
	})

	err := waiter.Execute("SELECT * FROM t")
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	assert.ErrorIs(t, err, KindBusy)
	require.NotEmpty(t, attempts)
	assert.Equal(t, 0, attempts[0])
	assert.Equal(t, 2, attempts[len(attempts)-1])

	require.NoError(t, holder.Execute("COMMIT"))
	assert.NoError(t, waiter.Execute("SELECT * FROM t"))
}

func TestBusyTimeout(t *testing.T) {
	_, waiter := lockedPair(t)

	waiter.SetBusyTimeout(20 * time.Millisecond)
	start := time.Now()
	err := waiter.Execute("SELECT * FROM t")
	require.Error(t, err)
	assert.True(t, IsBusy(err))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestVersion(t *testing.T) {
	assert.Regexp(t, `^3\.\d+\.\d+$`, Version())
	assert.Greater(t, VersionNumber(), 3000000)
}
