package sqlitell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/sqlitell/internal/native"
)

// Error is the single error type returned by this package.
//
// Every failure carries the operation that failed and a Kind derived from the
// engine's result code. Failures detected by this package itself (a column
// index out of range, a read that cannot be represented, a call in the wrong
// state) have Code 0.
type Error struct {
	// Op is the operation that failed.
	Op Op

	// Kind classifies the failure.
	Kind Kind

	// Code is the engine's extended result code, or 0.
	Code int

	// Message is the engine's message, or a description of the local check.
	Message string

	// SQL is the statement text, when the failure is tied to one.
	SQL string

	// Index is the 1-based parameter or 0-based column involved, or -1.
	Index int
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Code != 0 {
		fmt.Fprintf(&b, " (%s, code %d)", e.Kind, e.Code)
	} else {
		fmt.Fprintf(&b, " (%s)", e.Kind)
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, " at index %d", e.Index)
	}
	if e.SQL != "" {
		fmt.Fprintf(&b, " in %q", e.SQL)
	}
	return b.String()
}

// Is lets errors.Is match an *Error against a Kind.
//
//	if errors.Is(err, sqlitell.KindBusy) { ... }
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && e.Kind == k
}

// Op names the operation an Error came from.
type Op uint8

const (
	OpOpen Op = iota
	OpClose
	OpExecute
	OpPrepare
	OpBind
	OpStep
	OpReset
	OpRead
	OpFinalize
)

var opNames = [...]string{
	OpOpen:     "open",
	OpClose:    "close",
	OpExecute:  "execute",
	OpPrepare:  "prepare",
	OpBind:     "bind",
	OpStep:     "step",
	OpReset:    "reset",
	OpRead:     "read",
	OpFinalize: "finalize",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Kind categorizes errors. It is itself an error so it can be used as an
// errors.Is target.
type Kind uint8

const (
	// KindGeneric is SQLITE_ERROR and any code without a closer match.
	KindGeneric Kind = iota
	KindBusy
	KindLocked
	KindConstraint
	KindMisuse
	KindNotFound
	KindIOError
	KindCorrupt
	KindReadOnly
	KindRange
	KindNoMemory
	KindInterrupt
	KindCantOpen
	KindFull
	KindPermission
	KindAbort
	KindTooBig
	KindMismatch

	// KindIndexOutOfRange is a column index outside [0, ColumnCount).
	KindIndexOutOfRange

	// KindEncoding is column text that is not valid UTF-8.
	KindEncoding

	// KindTypeMismatch is a column value that cannot be represented in the
	// requested Go type.
	KindTypeMismatch
)

var kindNames = [...]string{
	KindGeneric:         "generic",
	KindBusy:            "busy",
	KindLocked:          "locked",
	KindConstraint:      "constraint",
	KindMisuse:          "misuse",
	KindNotFound:        "not found",
	KindIOError:         "i/o error",
	KindCorrupt:         "corrupt",
	KindReadOnly:        "read only",
	KindRange:           "range",
	KindNoMemory:        "no memory",
	KindInterrupt:       "interrupt",
	KindCantOpen:        "cannot open",
	KindFull:            "full",
	KindPermission:      "permission",
	KindAbort:           "abort",
	KindTooBig:          "too big",
	KindMismatch:        "mismatch",
	KindIndexOutOfRange: "index out of range",
	KindEncoding:        "encoding",
	KindTypeMismatch:    "type mismatch",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error implements the error interface.
func (k Kind) Error() string { return k.String() }

// Retryable reports whether the same operation may succeed if tried again
// later. The package never retries on its own.
func (k Kind) Retryable() bool {
	return k == KindBusy || k == KindLocked
}

// Fatal reports whether the connection should be considered unusable.
func (k Kind) Fatal() bool {
	return k == KindMisuse || k == KindCorrupt || k == KindNoMemory
}

// Primary result codes, https://www.sqlite.org/rescode.html
const (
	codeError      = 1
	codePerm       = 3
	codeAbort      = 4
	codeBusy       = 5
	codeLocked     = 6
	codeNoMem      = 7
	codeReadOnly   = 8
	codeInterrupt  = 9
	codeIOErr      = 10
	codeCorrupt    = 11
	codeNotFound   = 12
	codeFull       = 13
	codeCantOpen   = 14
	codeTooBig     = 18
	codeConstraint = 19
	codeMismatch   = 20
	codeMisuse     = 21
	codeAuth       = 23
	codeRange      = 25
	codeNotADB     = 26
)

// KindForCode maps an engine result code, primary or extended, to a Kind.
func KindForCode(code int) Kind {
	switch code & 0xff {
	case codeBusy:
		return KindBusy
	case codeLocked:
		return KindLocked
	case codeConstraint:
		return KindConstraint
	case codeMisuse:
		return KindMisuse
	case codeNotFound:
		return KindNotFound
	case codeIOErr:
		return KindIOError
	case codeCorrupt, codeNotADB:
		return KindCorrupt
	case codeReadOnly:
		return KindReadOnly
	case codeRange:
		return KindRange
	case codeNoMem:
		return KindNoMemory
	case codeInterrupt:
		return KindInterrupt
	case codeCantOpen:
		return KindCantOpen
	case codeFull:
		return KindFull
	case codePerm, codeAuth:
		return KindPermission
	case codeAbort:
		return KindAbort
	case codeTooBig:
		return KindTooBig
	case codeMismatch:
		return KindMismatch
	default:
		return KindGeneric
	}
}

// KindOf returns the Kind of the first *Error in err's chain. ok is false
// if there is none.
func KindOf(err error) (kind Kind, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return KindGeneric, false
}

// IsBusy returns true if the error reports a busy or locked database.
// Uses errors.As to handle wrapped errors.
func IsBusy(err error) bool {
	k, ok := KindOf(err)
	return ok && k.Retryable()
}

// IsConstraint returns true if the error is a constraint violation.
func IsConstraint(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindConstraint
}

// IsMisuse returns true if the error reports API misuse.
func IsMisuse(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindMisuse
}

// fromNative converts an error from the native layer. Errors that did not
// come from the engine (allocation failures) map to KindNoMemory.
func fromNative(op Op, err error, sql string) *Error {
	var ne *native.Error
	if errors.As(err, &ne) {
		return &Error{
			Op:      op,
			Kind:    KindForCode(int(ne.Code)),
			Code:    int(ne.Code),
			Message: ne.Msg,
			SQL:     sql,
			Index:   -1,
		}
	}
	return &Error{Op: op, Kind: KindNoMemory, Message: err.Error(), SQL: sql, Index: -1}
}

func newError(op Op, kind Kind, index int, format string, args ...any) *Error {
	return &Error{
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Index:   index,
	}
}

func misuse(op Op, format string, args ...any) *Error {
	return newError(op, KindMisuse, -1, format, args...)
}
