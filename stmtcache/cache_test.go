package stmtcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlitell"
	"github.com/roach88/sqlitell/internal/testutil"
)

func newTestCache(t *testing.T, capacity int) (*sqlitell.Conn, *Cache) {
	t.Helper()
	conn := testutil.OpenMemory(t, "CREATE TABLE t (x INTEGER); INSERT INTO t VALUES (1), (2), (3);")

	c, err := New(conn, capacity)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return conn, c
}

func count(t *testing.T, stmt *sqlitell.Stmt) int {
	t.Helper()
	n := 0
	for {
		state, err := stmt.Step()
		require.NoError(t, err)
		if state == sqlitell.StateDone {
			return n
		}
		n++
	}
}

func TestNew_RejectsBadCapacity(t *testing.T) {
	conn := testutil.OpenMemory(t)

	_, err := New(conn, 0)
	assert.Error(t, err)
}

func TestPrepare_ReusesReleasedStatement(t *testing.T) {
	_, c := newTestCache(t, 4)

	first, err := c.Prepare("SELECT x FROM t WHERE x > ?")
	require.NoError(t, err)
	require.NoError(t, first.BindInt64(1, 1))
	assert.Equal(t, 2, count(t, first))
	c.Release(first)

	second, err := c.Prepare("SELECT x FROM t WHERE x > ?")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, sqlitell.StateReady, second.State())

	// Bindings were cleared: x > NULL matches nothing.
	assert.Equal(t, 0, count(t, second))
	c.Release(second)

	assert.Equal(t, Stats{Hits: 1, Misses: 1, Idle: 1}, c.Stats())
}

func TestPrepare_CheckedOutStatementsAreDistinct(t *testing.T) {
	_, c := newTestCache(t, 4)

	a, err := c.Prepare("SELECT x FROM t")
	require.NoError(t, err)
	b, err := c.Prepare("SELECT x FROM t")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, c.Stats().Out)

	c.Release(a)
	c.Release(b) // duplicate, finalized

	s := c.Stats()
	assert.Equal(t, 1, s.Idle)
	assert.Equal(t, 0, s.Out)
	_, err = b.Step()
	assert.True(t, sqlitell.IsMisuse(err))
}

func TestRelease_EvictsLeastRecentlyUsed(t *testing.T) {
	_, c := newTestCache(t, 2)

	var stmts []*sqlitell.Stmt
	for _, sql := range []string{"SELECT 1", "SELECT 2", "SELECT 3"} {
		s, err := c.Prepare(sql)
		require.NoError(t, err)
		stmts = append(stmts, s)
	}
	for _, s := range stmts {
		c.Release(s)
	}

	s := c.Stats()
	assert.Equal(t, 1, s.Evictions)
	assert.Equal(t, 2, s.Idle)

	// "SELECT 1" was the oldest and is finalized.
	_, err := stmts[0].Step()
	assert.True(t, sqlitell.IsMisuse(err))

	again, err := c.Prepare("SELECT 3")
	require.NoError(t, err)
	assert.Same(t, stmts[2], again)
	c.Release(again)
}

func TestPrepare_Errors(t *testing.T) {
	_, c := newTestCache(t, 2)

	_, err := c.Prepare("SELECT * FROM missing")
	require.Error(t, err)
	assert.Equal(t, Stats{}, c.Stats())
}

func TestClose_FinalizesIdleAndLateReleases(t *testing.T) {
	conn, err := sqlitell.Open(sqlitell.Memory)
	require.NoError(t, err)
	c, err := New(conn, 4)
	require.NoError(t, err)

	idle, err := c.Prepare("SELECT 1")
	require.NoError(t, err)
	c.Release(idle)
	out, err := c.Prepare("SELECT 2")
	require.NoError(t, err)

	c.Close()
	_, err = idle.Step()
	assert.True(t, sqlitell.IsMisuse(err))

	_, err = c.Prepare("SELECT 1")
	assert.Error(t, err)

	c.Release(out)
	_, err = out.Step()
	assert.True(t, sqlitell.IsMisuse(err))

	assert.Equal(t, 0, c.Stats().Evictions)
	require.NoError(t, conn.Close())
}
