package sqlitell

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, TypeNull, v.Type())
	assert.True(t, v.Equal(Null()))
}

func TestValue_Accessors(t *testing.T) {
	i, ok := Integer(7).AsInt64()
	assert.True(t, ok)
	assert.Equal(t, int64(7), i)

	_, ok = Integer(7).AsFloat64()
	assert.False(t, ok)

	f, ok := Float(1.5).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 1.5, f)

	s, ok := Text("x").AsText()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	b, ok := Blob(nil).AsBlob()
	assert.True(t, ok)
	assert.NotNil(t, b)

	_, ok = Null().AsBlob()
	assert.False(t, ok)
}

func TestValue_Equal(t *testing.T) {
	assert.True(t, Float(math.NaN()).Equal(Float(math.NaN())))
	assert.False(t, Integer(1).Equal(Float(1)))
	assert.False(t, Text("1").Equal(Integer(1)))
	assert.True(t, Blob([]byte{}).Equal(Blob(nil)))
	assert.False(t, Blob(nil).Equal(Null()))
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null(), "NULL"},
		{Integer(-3), "-3"},
		{Float(42.69), "42.69"},
		{Text("Alice"), "Alice"},
		{Blob([]byte{0x42, 0x69}), "X'4269'"},
		{Blob(nil), "X''"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}
}

func TestType_String(t *testing.T) {
	assert.Equal(t, "INTEGER", TypeInteger.String())
	assert.Equal(t, "FLOAT", TypeFloat.String())
	assert.Equal(t, "TEXT", TypeText.String())
	assert.Equal(t, "BLOB", TypeBlob.String())
	assert.Equal(t, "NULL", TypeNull.String())
	assert.Equal(t, "Type(9)", Type(9).String())
}
