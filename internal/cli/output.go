package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/sqlitell"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // SQL failure or failed scenarios
	ExitCommandError = 2 // Command error (bad config, database cannot be opened, etc.)
)

// Error codes for CLI responses. SQL failures use E_<KIND>, see errorCode.
const (
	ErrCodeConfig   = "E_CONFIG"
	ErrCodeOpen     = "E_OPEN"
	ErrCodeScenario = "E_SCENARIO"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message or response code
	Err     error  // Underlying error (optional)

	reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Reported reports whether the error was already written to the output.
func (e *ExitError) Reported() bool { return e.reported }

func reported(e *ExitError) *ExitError {
	e.reported = true
	return e
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // text-mode errors (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format. Text
// output prints data with fmt, so result types implement String.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Report outputs err and returns it as an *ExitError. Errors that are not
// already ExitErrors are SQL failures and exit with ExitFailure.
func (f *OutputFormatter) Report(err error) error {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitFailure, errorCode(err), err)
	}
	message := exitErr.Message
	if exitErr.Err != nil {
		message = exitErr.Err.Error()
	}
	_ = f.Error(errorCode(exitErr), message, errorDetails(exitErr.Err))
	return reported(exitErr)
}

// errorCode returns the response code for err: the Message of an
// ExitError, E_<KIND> for a sqlitell error, or E_ERROR.
func errorCode(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && strings.HasPrefix(exitErr.Message, "E_") {
		return exitErr.Message
	}
	if kind, ok := sqlitell.KindOf(err); ok {
		return "E_" + strings.ToUpper(strings.NewReplacer(" ", "_", "/", "").Replace(kind.String()))
	}
	return "E_ERROR"
}

// ErrorDetails is the details payload for sqlitell errors.
type ErrorDetails struct {
	Op    string `json:"op"`
	Kind  string `json:"kind"`
	Code  int    `json:"code,omitempty"`
	SQL   string `json:"sql,omitempty"`
	Index *int   `json:"index,omitempty"`
}

func (d ErrorDetails) String() string {
	s := fmt.Sprintf("op=%s kind=%s code=%d", d.Op, d.Kind, d.Code)
	if d.Index != nil {
		s += fmt.Sprintf(" index=%d", *d.Index)
	}
	if d.SQL != "" {
		s += fmt.Sprintf(" sql=%q", d.SQL)
	}
	return s
}

func errorDetails(err error) any {
	var e *sqlitell.Error
	if err == nil || !errors.As(err, &e) {
		return nil
	}
	d := ErrorDetails{
		Op:   e.Op.String(),
		Kind: e.Kind.String(),
		Code: e.Code,
		SQL:  e.SQL,
	}
	if e.Index >= 0 {
		idx := e.Index
		d.Index = &idx
	}
	return d
}
