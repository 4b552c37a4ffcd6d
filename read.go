package sqlitell

import (
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/roach88/sqlitell/internal/native"
)

// Reading follows the engine's conversion table
// (https://www.sqlite.org/c3ref/column_blob.html) with these exceptions:
//
//   - NULL read as text is a KindTypeMismatch error; as a number it is 0
//     and as a blob it is nil.
//   - Text that is not valid UTF-8 is a KindEncoding error.
//   - Integers that do not fit the requested Go type, and finite floats
//     beyond the float32 range, are a KindTypeMismatch error.

// checkRow checks the column index before the state.
func (s *Stmt) checkRow(col int) *Error {
	if err := s.check(OpRead); err != nil {
		return s.withSQL(err)
	}
	if err := s.checkColumn(col); err != nil {
		return err
	}
	if s.state != StateRow {
		return s.withSQL(misuse(OpRead, "no row available in state %s", s.state))
	}
	return nil
}

func (s *Stmt) mismatch(col int, format string, args ...any) *Error {
	return s.withSQL(newError(OpRead, KindTypeMismatch, col, format, args...))
}

// IsNull reports whether the column holds NULL in the current row.
func (s *Stmt) IsNull(col int) (bool, error) {
	t, err := s.ColumnType(col)
	if err != nil {
		return false, err
	}
	return t == TypeNull, nil
}

// ReadInt64 reads a column as a 64-bit integer.
func (s *Stmt) ReadInt64(col int) (int64, error) {
	if err := s.checkRow(col); err != nil {
		return 0, err
	}
	return s.ns.ColumnInt64(col), nil
}

// ReadFloat64 reads a column as a 64-bit float.
func (s *Stmt) ReadFloat64(col int) (float64, error) {
	if err := s.checkRow(col); err != nil {
		return 0, err
	}
	return s.ns.ColumnDouble(col), nil
}

// ReadBool reads a column as an integer and reports whether it is
// non-zero.
func (s *Stmt) ReadBool(col int) (bool, error) {
	v, err := s.ReadInt64(col)
	return v != 0, err
}

// ReadText reads a column as UTF-8 text.
func (s *Stmt) ReadText(col int) (string, error) {
	if err := s.checkRow(col); err != nil {
		return "", err
	}
	if s.ns.ColumnType(col) == native.TypeNull {
		return "", s.mismatch(col, "NULL cannot be read as text")
	}
	b, ok := s.ns.ColumnText(col)
	if !ok {
		return "", nil
	}
	if !utf8.Valid(b) {
		return "", s.withSQL(newError(OpRead, KindEncoding, col, "column is not valid UTF-8"))
	}
	return string(b), nil
}

// ReadBlob reads a column as bytes. The result is a copy owned by the
// caller. NULL reads as nil, an empty blob as a non-nil empty slice.
func (s *Stmt) ReadBlob(col int) ([]byte, error) {
	if err := s.checkRow(col); err != nil {
		return nil, err
	}
	if s.ns.ColumnType(col) == native.TypeNull {
		return nil, nil
	}
	b := s.ns.ColumnBlob(col)
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

// ReadBytes copies the column's bytes into buf and reports how many were
// copied. A column longer than buf is a KindTypeMismatch error; NULL
// copies nothing.
func (s *Stmt) ReadBytes(col int, buf []byte) (int, error) {
	if err := s.checkRow(col); err != nil {
		return 0, err
	}
	if s.ns.ColumnType(col) == native.TypeNull {
		return 0, nil
	}
	if n := s.ns.ColumnBytes(col); n > len(buf) {
		return 0, s.mismatch(col, "%d bytes do not fit in a buffer of %d", n, len(buf))
	}
	return s.ns.ColumnBlobInto(col, buf), nil
}

// ReadValue reads a column as a Value of its storage class.
func (s *Stmt) ReadValue(col int) (Value, error) {
	t, err := s.ColumnType(col)
	if err != nil {
		return Value{}, err
	}
	switch t {
	case TypeInteger:
		return Integer(s.ns.ColumnInt64(col)), nil
	case TypeFloat:
		return Float(s.ns.ColumnDouble(col)), nil
	case TypeText:
		v, err := s.ReadText(col)
		if err != nil {
			return Value{}, err
		}
		return Text(v), nil
	case TypeBlob:
		v, err := s.ReadBlob(col)
		if err != nil {
			return Value{}, err
		}
		return Blob(v), nil
	default:
		return Null(), nil
	}
}

// Read reads a column into a T.
//
// T may be any signed or unsigned integer type, float32, float64, bool,
// string, []byte, Value, uuid.UUID (a 16-byte blob or its text form) or
// time.Time (RFC 3339 text or Unix seconds). Any other T is a
// KindTypeMismatch error.
func Read[T any](s *Stmt, col int) (T, error) {
	var out T
	var err error
	switch p := any(&out).(type) {
	case *int64:
		*p, err = s.ReadInt64(col)
	case *int:
		*p, err = readInt[int](s, col, math.MinInt, math.MaxInt)
	case *int32:
		*p, err = readInt[int32](s, col, math.MinInt32, math.MaxInt32)
	case *int16:
		*p, err = readInt[int16](s, col, math.MinInt16, math.MaxInt16)
	case *int8:
		*p, err = readInt[int8](s, col, math.MinInt8, math.MaxInt8)
	case *uint64:
		*p, err = readUint[uint64](s, col, math.MaxInt64)
	case *uint:
		*p, err = readUint[uint](s, col, math.MaxInt64)
	case *uint32:
		*p, err = readUint[uint32](s, col, math.MaxUint32)
	case *uint16:
		*p, err = readUint[uint16](s, col, math.MaxUint16)
	case *uint8:
		*p, err = readUint[uint8](s, col, math.MaxUint8)
	case *float64:
		*p, err = s.ReadFloat64(col)
	case *float32:
		*p, err = readFloat32(s, col)
	case *bool:
		*p, err = s.ReadBool(col)
	case *string:
		*p, err = s.ReadText(col)
	case *[]byte:
		*p, err = s.ReadBlob(col)
	case *Value:
		*p, err = s.ReadValue(col)
	case *uuid.UUID:
		*p, err = readUUID(s, col)
	case *time.Time:
		*p, err = readTime(s, col)
	default:
		if err := s.checkRow(col); err != nil {
			return out, err
		}
		return out, s.mismatch(col, "unsupported type %T", out)
	}
	return out, err
}

// ReadOptional reads a column into a T, reporting ok false and the zero T
// when the column is NULL.
func ReadOptional[T any](s *Stmt, col int) (v T, ok bool, err error) {
	null, err := s.IsNull(col)
	if err != nil || null {
		return v, false, err
	}
	v, err = Read[T](s, col)
	return v, err == nil, err
}

type signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func readInt[T signed](s *Stmt, col int, lo, hi int64) (T, error) {
	v, err := s.ReadInt64(col)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		var zero T
		return 0, s.mismatch(col, "%d overflows %T", v, zero)
	}
	return T(v), nil
}

func readUint[T unsigned](s *Stmt, col int, hi uint64) (T, error) {
	v, err := s.ReadInt64(col)
	if err != nil {
		return 0, err
	}
	if v < 0 || uint64(v) > hi {
		var zero T
		return 0, s.mismatch(col, "%d overflows %T", v, zero)
	}
	return T(v), nil
}

func readFloat32(s *Stmt, col int) (float32, error) {
	f, err := s.ReadFloat64(col)
	if err != nil {
		return 0, err
	}
	if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, s.mismatch(col, "value %g overflows float32", f)
	}
	return float32(f), nil
}

func readUUID(s *Stmt, col int) (uuid.UUID, error) {
	t, err := s.ColumnType(col)
	if err != nil {
		return uuid.Nil, err
	}
	switch t {
	case TypeBlob:
		b, _ := s.ReadBlob(col)
		u, err := uuid.FromBytes(b)
		if err != nil {
			return uuid.Nil, s.mismatch(col, "blob is not a UUID: %v", err)
		}
		return u, nil
	case TypeText:
		txt, err := s.ReadText(col)
		if err != nil {
			return uuid.Nil, err
		}
		u, err := uuid.Parse(txt)
		if err != nil {
			return uuid.Nil, s.mismatch(col, "text is not a UUID: %v", err)
		}
		return u, nil
	default:
		return uuid.Nil, s.mismatch(col, "%s cannot be read as a UUID", t)
	}
}

func readTime(s *Stmt, col int) (time.Time, error) {
	t, err := s.ColumnType(col)
	if err != nil {
		return time.Time{}, err
	}
	switch t {
	case TypeInteger:
		return time.Unix(s.ns.ColumnInt64(col), 0).UTC(), nil
	case TypeText:
		txt, err := s.ReadText(col)
		if err != nil {
			return time.Time{}, err
		}
		tm, err := time.Parse(time.RFC3339Nano, txt)
		if err != nil {
			return time.Time{}, s.mismatch(col, "text is not an RFC 3339 time: %v", err)
		}
		return tm, nil
	default:
		return time.Time{}, s.mismatch(col, "%s cannot be read as a time", t)
	}
}
