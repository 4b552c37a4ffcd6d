// Package testutil provides helpers shared by package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlitell"
)

// OpenMemory opens an in-memory connection, runs each setup script and
// closes the connection at test cleanup. Statements still open at cleanup
// fail the test.
func OpenMemory(t testing.TB, setup ...string) *sqlitell.Conn {
	t.Helper()
	conn, err := sqlitell.Open(sqlitell.Memory)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, conn.Close())
	})
	for _, sql := range setup {
		require.NoError(t, conn.Execute(sql))
	}
	return conn
}

// TempPath returns the path of a database file named name inside a
// directory removed at test cleanup. The file is not created.
func TempPath(t testing.TB, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// Seed creates the database file at path with setup and closes it.
func Seed(t testing.TB, path string, setup string) {
	t.Helper()
	conn, err := sqlitell.Open(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, conn.Close()) }()
	require.NoError(t, conn.Execute(setup))
}
