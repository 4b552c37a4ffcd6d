package sqlitell

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/sqlitell/internal/native"
)

// Type is the storage class of a value.
// https://www.sqlite.org/datatype3.html
type Type uint8

const (
	TypeNull Type = iota
	TypeInteger
	TypeFloat
	TypeText
	TypeBlob
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInteger:
		return "INTEGER"
	case TypeFloat:
		return "FLOAT"
	case TypeText:
		return "TEXT"
	case TypeBlob:
		return "BLOB"
	default:
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
}

func typeFromNative(t int32) Type {
	switch t {
	case native.TypeInteger:
		return TypeInteger
	case native.TypeFloat:
		return TypeFloat
	case native.TypeText:
		return TypeText
	case native.TypeBlob:
		return TypeBlob
	default:
		return TypeNull
	}
}

// Value is a dynamically typed value: exactly one of NULL, a 64-bit
// integer, a 64-bit float, text, or a blob. The zero Value is NULL.
type Value struct {
	typ Type
	i   int64
	f   float64
	s   string
	b   []byte
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Integer returns an INTEGER value.
func Integer(i int64) Value { return Value{typ: TypeInteger, i: i} }

// Float returns a FLOAT value.
func Float(f float64) Value { return Value{typ: TypeFloat, f: f} }

// Text returns a TEXT value.
func Text(s string) Value { return Value{typ: TypeText, s: s} }

// Blob returns a BLOB value. A nil b is still a (zero-length) blob.
func Blob(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{typ: TypeBlob, b: b}
}

// Type reports the storage class.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is NULL.
func (v Value) IsNull() bool { return v.typ == TypeNull }

// AsInt64 returns the integer and true if v is an INTEGER.
func (v Value) AsInt64() (int64, bool) {
	return v.i, v.typ == TypeInteger
}

// AsFloat64 returns the float and true if v is a FLOAT.
func (v Value) AsFloat64() (float64, bool) {
	return v.f, v.typ == TypeFloat
}

// AsText returns the text and true if v is TEXT.
func (v Value) AsText() (string, bool) {
	return v.s, v.typ == TypeText
}

// AsBlob returns the bytes and true if v is a BLOB.
func (v Value) AsBlob() ([]byte, bool) {
	return v.b, v.typ == TypeBlob
}

// Equal reports whether v and o hold the same type and contents. FLOAT
// values compare bitwise, so NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeInteger:
		return v.i == o.i
	case TypeFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case TypeText:
		return v.s == o.s
	case TypeBlob:
		return bytes.Equal(v.b, o.b)
	default:
		return true
	}
}

// String renders v the way the sqlite3 shell would, with blobs as X'..'.
func (v Value) String() string {
	switch v.typ {
	case TypeInteger:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeText:
		return v.s
	case TypeBlob:
		return fmt.Sprintf("X'%X'", v.b)
	default:
		return "NULL"
	}
}
