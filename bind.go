package sqlitell

import (
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// ParameterCount reports the largest parameter index in the statement.
func (s *Stmt) ParameterCount() int { return s.params }

// ParameterIndex returns the 1-based index of the named parameter. The
// name includes its prefix character, as in ":id", "@id" or "$id".
func (s *Stmt) ParameterIndex(name string) (int, bool) {
	if s.check(OpBind) != nil {
		return 0, false
	}
	i, err := s.ns.BindParameterIndex(name)
	if err != nil || i == 0 {
		return 0, false
	}
	return i, true
}

// ParameterName returns the name of the parameter at index i, including
// its prefix, or "" for "?" parameters.
func (s *Stmt) ParameterName(i int) string {
	if s.check(OpBind) != nil || i < 1 || i > s.params {
		return ""
	}
	return s.ns.BindParameterName(i)
}

func (s *Stmt) checkBind(i int) *Error {
	if err := s.check(OpBind); err != nil {
		return s.withSQL(err)
	}
	if s.state != StateReady {
		return s.withSQL(misuse(OpBind, "cannot bind in state %s, statement must be reset", s.state))
	}
	if i < 1 || i > s.params {
		return s.withSQL(newError(OpBind, KindRange, i, "parameter %d out of range [1, %d]", i, s.params))
	}
	return nil
}

func (s *Stmt) bindResult(i int, err error) error {
	if err == nil {
		return nil
	}
	e := fromNative(OpBind, err, s.sql)
	e.Index = i
	return e
}

// BindInt64 binds an integer to parameter i.
func (s *Stmt) BindInt64(i int, v int64) error {
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.bindResult(i, s.ns.BindInt64(i, v))
}

// BindFloat64 binds a float to parameter i.
func (s *Stmt) BindFloat64(i int, v float64) error {
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.bindResult(i, s.ns.BindDouble(i, v))
}

// BindText binds text to parameter i. The engine keeps its own copy.
func (s *Stmt) BindText(i int, v string) error {
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.bindResult(i, s.ns.BindText(i, v))
}

// BindBlob binds bytes to parameter i. A nil or empty v binds a
// zero-length blob, not NULL.
func (s *Stmt) BindBlob(i int, v []byte) error {
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.bindResult(i, s.ns.BindBlob(i, v))
}

// BindZeroBlob binds a blob of n zero bytes to parameter i.
func (s *Stmt) BindZeroBlob(i int, n int) error {
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.bindResult(i, s.ns.BindZeroBlob(i, n))
}

// BindNull binds NULL to parameter i.
func (s *Stmt) BindNull(i int) error {
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.bindResult(i, s.ns.BindNull(i))
}

// BindValue binds v according to its type.
func (s *Stmt) BindValue(i int, v Value) error {
	switch v.typ {
	case TypeInteger:
		return s.BindInt64(i, v.i)
	case TypeFloat:
		return s.BindFloat64(i, v.f)
	case TypeText:
		return s.BindText(i, v.s)
	case TypeBlob:
		return s.BindBlob(i, v.b)
	default:
		return s.BindNull(i)
	}
}

// Bind binds a Go value to parameter i.
//
// Accepted types are nil, bool, every integer and float type, string,
// []byte, Value, uuid.UUID (a 16-byte blob), time.Time (RFC 3339 text in
// UTC) and pointers to any of these, where a nil pointer binds NULL.
// Unsigned values above math.MaxInt64 are a KindTypeMismatch error.
func (s *Stmt) Bind(i int, v any) error {
	switch v := v.(type) {
	case nil:
		return s.BindNull(i)
	case Value:
		return s.BindValue(i, v)
	case bool:
		if v {
			return s.BindInt64(i, 1)
		}
		return s.BindInt64(i, 0)
	case int:
		return s.BindInt64(i, int64(v))
	case int8:
		return s.BindInt64(i, int64(v))
	case int16:
		return s.BindInt64(i, int64(v))
	case int32:
		return s.BindInt64(i, int64(v))
	case int64:
		return s.BindInt64(i, v)
	case uint:
		return s.bindUint(i, uint64(v))
	case uint8:
		return s.BindInt64(i, int64(v))
	case uint16:
		return s.BindInt64(i, int64(v))
	case uint32:
		return s.BindInt64(i, int64(v))
	case uint64:
		return s.bindUint(i, v)
	case float32:
		return s.BindFloat64(i, float64(v))
	case float64:
		return s.BindFloat64(i, v)
	case string:
		return s.BindText(i, v)
	case []byte:
		return s.BindBlob(i, v)
	case uuid.UUID:
		return s.BindBlob(i, v[:])
	case time.Time:
		return s.BindText(i, v.UTC().Format(time.RFC3339Nano))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return s.BindNull(i)
		}
		return s.Bind(i, rv.Elem().Interface())
	}
	if err := s.checkBind(i); err != nil {
		return err
	}
	return s.withSQL(newError(OpBind, KindTypeMismatch, i, "unsupported type %T", v))
}

func (s *Stmt) bindUint(i int, v uint64) error {
	if v > math.MaxInt64 {
		if err := s.checkBind(i); err != nil {
			return err
		}
		return s.withSQL(newError(OpBind, KindTypeMismatch, i, "%d overflows a 64-bit signed integer", v))
	}
	return s.BindInt64(i, int64(v))
}

// BindByName binds v to the named parameter. An unknown name is a
// KindRange error.
func (s *Stmt) BindByName(name string, v any) error {
	if err := s.check(OpBind); err != nil {
		return s.withSQL(err)
	}
	i, ok := s.ParameterIndex(name)
	if !ok {
		return s.withSQL(newError(OpBind, KindRange, -1, "no parameter named %q", name))
	}
	return s.Bind(i, v)
}

// BindAll binds args to parameters 1 through len(args).
func (s *Stmt) BindAll(args ...any) error {
	for i, a := range args {
		if err := s.Bind(i+1, a); err != nil {
			return err
		}
	}
	return nil
}
