package sqlitell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowsToMaps flattens Iterate rows for comparison; NULL becomes "<nil>".
func rowsToMaps(t *testing.T, c *Conn, sql string) []map[string]string {
	t.Helper()
	var out []map[string]string
	err := c.Iterate(sql, func(row []Pair) bool {
		m := make(map[string]string, len(row))
		for _, p := range row {
			if p.Value == nil {
				m[p.Column] = "<nil>"
			} else {
				m[p.Column] = *p.Value
			}
		}
		out = append(out, m)
		return true
	})
	require.NoError(t, err)
	return out
}

func TestIterate_RendersText(t *testing.T) {
	c := openUsers(t)

	rows := rowsToMaps(t, c, "SELECT * FROM users")
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{
		"id":    "1",
		"name":  "Alice",
		"age":   "42.69",
		"photo": "Bi",
		"email": "<nil>",
	}, rows[0])
}

func TestIterate_ColumnOrder(t *testing.T) {
	c := openUsers(t)

	var cols []string
	require.NoError(t, c.Iterate("SELECT email, id FROM users", func(row []Pair) bool {
		for _, p := range row {
			cols = append(cols, p.Column)
		}
		return true
	}))
	assert.Equal(t, []string{"email", "id"}, cols)
}

func TestIterate_StopsEarly(t *testing.T) {
	c := openTestConn(t)
	require.NoError(t, c.Execute(`
		CREATE TABLE english (value TEXT);
		INSERT INTO english VALUES ('cerotype'), ('metatype'), ('ozotype'), ('phenotype'), ('plastotype'), ('undertype'), ('nonsence');
	`))

	var seen []string
	err := c.Iterate("SELECT value FROM english WHERE value LIKE '%type' ORDER BY value; SELECT 'never'", func(row []Pair) bool {
		seen = append(seen, *row[0].Value)
		return len(seen) < 2
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cerotype", "metatype"}, seen)

	// The statement was finalized, so the connection closes cleanly.
	assert.Equal(t, 6, len(rowsToMaps(t, c, "SELECT value FROM english WHERE value LIKE '%type'")))
}

func TestIterate_MultipleStatements(t *testing.T) {
	c := openTestConn(t)

	rows := rowsToMaps(t, c, `
		CREATE TABLE t (x);
		INSERT INTO t VALUES (1), (2);
		SELECT x AS a FROM t;
		SELECT count(*) AS n FROM t;
	`)
	assert.Equal(t, []map[string]string{{"a": "1"}, {"a": "2"}, {"n": "2"}}, rows)
}

func TestIterate_PropagatesErrors(t *testing.T) {
	c := openTestConn(t)

	err := c.Iterate("SELECT 1; SELECT * FROM missing", func([]Pair) bool { return true })
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpExecute, e.Op)
	assert.Contains(t, e.Message, "no such table")
}
