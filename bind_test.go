package sqlitell

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTrip binds v to "SELECT typeof(?1), ?1" and returns the storage
// class name and the value read back.
func roundTrip(t *testing.T, c *Conn, v any) (string, Value) {
	t.Helper()
	var typ string
	var got Value
	err := c.WithStmt("SELECT typeof(?1), ?1", func(s *Stmt) error {
		if err := s.Bind(1, v); err != nil {
			return err
		}
		if _, err := s.Step(); err != nil {
			return err
		}
		var err error
		if typ, err = s.ReadText(0); err != nil {
			return err
		}
		got, err = s.ReadValue(1)
		return err
	})
	require.NoError(t, err)
	return typ, got
}

func TestBind_GoTypes(t *testing.T) {
	c := openTestConn(t)
	n := int32(7)
	var nilPtr *string
	id := uuid.MustParse("7b4e2f1a-9c3d-4e5f-8a6b-1c2d3e4f5a6b")
	when := time.Date(2024, 3, 9, 14, 30, 0, 0, time.FixedZone("X", 3600))

	tests := []struct {
		name string
		in   any
		typ  string
		want Value
	}{
		{"nil", nil, "null", Null()},
		{"true", true, "integer", Integer(1)},
		{"false", false, "integer", Integer(0)},
		{"int", 42, "integer", Integer(42)},
		{"int8", int8(-8), "integer", Integer(-8)},
		{"uint32", uint32(math.MaxUint32), "integer", Integer(math.MaxUint32)},
		{"uint64 max int64", uint64(math.MaxInt64), "integer", Integer(math.MaxInt64)},
		{"float32", float32(0.5), "real", Float(0.5)},
		{"float64", 42.69, "real", Float(42.69)},
		{"string", "Alice", "text", Text("Alice")},
		{"empty string", "", "text", Text("")},
		{"bytes", []byte{0x42, 0x69}, "blob", Blob([]byte{0x42, 0x69})},
		{"empty bytes", []byte{}, "blob", Blob(nil)},
		{"nil bytes", []byte(nil), "blob", Blob(nil)},
		{"value", Float(1.25), "real", Float(1.25)},
		{"null value", Null(), "null", Null()},
		{"pointer", &n, "integer", Integer(7)},
		{"nil pointer", nilPtr, "null", Null()},
		{"uuid", id, "blob", Blob(id[:])},
		{"time", when, "text", Text("2024-03-09T13:30:00Z")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, got := roundTrip(t, c, tt.in)
			assert.Equal(t, tt.typ, typ)
			assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
		})
	}
}

func TestBind_TextWithNUL(t *testing.T) {
	c := openTestConn(t)

	_, got := roundTrip(t, c, "a\x00b")
	s, ok := got.AsText()
	require.True(t, ok)
	assert.Equal(t, "a\x00b", s)
}

func TestBind_Rejects(t *testing.T) {
	c := openTestConn(t)
	stmt := prepare(t, c, "SELECT ?, ?")

	err := stmt.Bind(1, uint64(math.MaxUint64))
	require.Error(t, err)
	assert.ErrorIs(t, err, KindTypeMismatch)

	err = stmt.Bind(1, struct{}{})
	assert.ErrorIs(t, err, KindTypeMismatch)

	err = stmt.Bind(1, map[string]int{})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpBind, e.Op)
	assert.Equal(t, 1, e.Index)
}

func TestBind_IndexRange(t *testing.T) {
	c := openTestConn(t)
	stmt := prepare(t, c, "SELECT ?, ?")

	for _, i := range []int{0, -1, 3} {
		err := stmt.BindInt64(i, 1)
		require.Error(t, err)
		var e *Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, KindRange, e.Kind)
		assert.Equal(t, i, e.Index)
	}
	assert.NoError(t, stmt.BindInt64(2, 1))
}

func TestBind_OnlyWhenReady(t *testing.T) {
	c := openTestConn(t)
	stmt := prepare(t, c, "SELECT ?")

	require.NoError(t, stmt.BindInt64(1, 1))
	step(t, stmt, StateRow)
	assert.True(t, IsMisuse(stmt.BindInt64(1, 2)))

	step(t, stmt, StateDone)
	assert.True(t, IsMisuse(stmt.BindInt64(1, 2)))

	require.NoError(t, stmt.Reset())
	assert.NoError(t, stmt.BindInt64(1, 2))
}

func TestBindByName(t *testing.T) {
	c := openUsers(t)
	stmt := prepare(t, c, "SELECT name FROM users WHERE id = :id AND age > @age")

	assert.Equal(t, 2, stmt.ParameterCount())
	assert.Equal(t, ":id", stmt.ParameterName(1))
	assert.Equal(t, "@age", stmt.ParameterName(2))
	assert.Equal(t, "", stmt.ParameterName(3))

	i, ok := stmt.ParameterIndex("@age")
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = stmt.ParameterIndex(":missing")
	assert.False(t, ok)

	require.NoError(t, stmt.BindByName(":id", 1))
	require.NoError(t, stmt.BindByName("@age", 40.0))
	step(t, stmt, StateRow)
	name, err := stmt.ReadText(0)
	require.NoError(t, err)
	assert.Equal(t, "Alice", name)

	require.NoError(t, stmt.Reset())
	err = stmt.BindByName(":missing", 1)
	assert.ErrorIs(t, err, KindRange)
}

func TestBindAll(t *testing.T) {
	c := openTestConn(t)
	stmt := prepare(t, c, "SELECT ? + ?")

	require.NoError(t, stmt.BindAll(40, int64(2)))
	step(t, stmt, StateRow)
	v, err := stmt.ReadInt64(0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
}

func TestBindZeroBlob(t *testing.T) {
	c := openTestConn(t)
	stmt := prepare(t, c, "SELECT ?")

	require.NoError(t, stmt.BindZeroBlob(1, 4))
	step(t, stmt, StateRow)
	b, err := stmt.ReadBlob(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestBindZeroBlob_TooBig(t *testing.T) {
	c := openTestConn(t)
	stmt := prepare(t, c, "SELECT ?")

	n := math.MaxInt32
	n++
	err := stmt.BindZeroBlob(1, n)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, OpBind, e.Op)
	assert.Equal(t, KindTooBig, e.Kind)
	assert.Equal(t, 1, e.Index)

	require.NoError(t, stmt.BindZeroBlob(1, 0))
	step(t, stmt, StateRow)
}
