// Package errors provides the typed error used across the pipeline stages.
// Each error carries a category and a severity so the CLI can decide whether
// a failure aborts a stage or is logged and skipped.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorType is the category of a pipeline error.
type ErrorType int

const (
	// ErrorTypeConfig covers missing or invalid settings.
	ErrorTypeConfig ErrorType = iota
	// ErrorTypeValidation covers rejected user input (flags, roster rows).
	ErrorTypeValidation
	// ErrorTypeInput covers contribution documents that cannot be decoded.
	ErrorTypeInput
	// ErrorTypeStorage covers graph store failures (file, sqlite, postgres, neo4j).
	ErrorTypeStorage
	// ErrorTypeNetwork covers transport failures talking to a hosting platform.
	ErrorTypeNetwork
	// ErrorTypeFileSystem covers local I/O.
	ErrorTypeFileSystem
	// ErrorTypeExternal covers non-transport failures reported by a remote API.
	ErrorTypeExternal
	// ErrorTypeInternal covers broken internal state.
	ErrorTypeInternal
)

// Severity says how much of a run an error takes down.
type Severity int

const (
	// SeverityLow is logged and skipped.
	SeverityLow Severity = iota
	// SeverityMedium degrades the output but the stage still completes.
	SeverityMedium
	// SeverityHigh fails the current operation.
	SeverityHigh
	// SeverityCritical aborts the stage with no output written.
	SeverityCritical
)

// Error is a categorized error with optional structured context.
type Error struct {
	Type      ErrorType
	Severity  Severity
	Message   string
	Cause     error
	Context   map[string]interface{}
	Timestamp time.Time
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair and returns the same error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is matches any *Error of the same type, so callers can test
// errors.Is(err, &Error{Type: ErrorTypeInput}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// IsFatal reports whether the error must abort the stage.
func (e *Error) IsFatal() bool {
	return e.Severity == SeverityCritical
}

// DetailedString renders the error with its cause and sorted context.
func (e *Error) DetailedString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%s] %s\n", e.Severity, e.Type, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, "Caused by: %v\n", e.Cause)
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", k, e.Context[k])
		}
	}
	return sb.String()
}

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeValidation:
		return "VALIDATION"
	case ErrorTypeInput:
		return "INPUT"
	case ErrorTypeStorage:
		return "STORAGE"
	case ErrorTypeNetwork:
		return "NETWORK"
	case ErrorTypeFileSystem:
		return "FILESYSTEM"
	case ErrorTypeExternal:
		return "EXTERNAL"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// New creates an error without a cause.
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:      errType,
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap creates an error around cause. A nil cause yields nil.
func Wrap(cause error, errType ErrorType, severity Severity, message string) *Error {
	if cause == nil {
		return nil
	}
	return withCause(cause, errType, severity, message)
}

// withCause backs the category constructors, which always return an error
// even when there is no underlying cause.
func withCause(cause error, errType ErrorType, severity Severity, message string) *Error {
	e := New(errType, severity, message)
	e.Cause = cause
	return e
}

func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

func ValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// InputError marks a document that could not be decoded. Low severity:
// the loader logs it and moves on to the next document.
func InputError(cause error, message string) *Error {
	return withCause(cause, ErrorTypeInput, SeverityLow, message)
}

func InputErrorf(cause error, format string, args ...interface{}) *Error {
	return withCause(cause, ErrorTypeInput, SeverityLow, fmt.Sprintf(format, args...))
}

func StorageError(cause error, message string) *Error {
	return withCause(cause, ErrorTypeStorage, SeverityHigh, message)
}

func StorageErrorf(cause error, format string, args ...interface{}) *Error {
	return withCause(cause, ErrorTypeStorage, SeverityHigh, fmt.Sprintf(format, args...))
}

func NetworkErrorf(cause error, format string, args ...interface{}) *Error {
	return withCause(cause, ErrorTypeNetwork, SeverityMedium, fmt.Sprintf(format, args...))
}

// FileSystemErrorf is critical: a stage that cannot read its input or write
// its output produces nothing.
func FileSystemErrorf(cause error, format string, args ...interface{}) *Error {
	return withCause(cause, ErrorTypeFileSystem, SeverityCritical, fmt.Sprintf(format, args...))
}

func ExternalErrorf(cause error, format string, args ...interface{}) *Error {
	return withCause(cause, ErrorTypeExternal, SeverityMedium, fmt.Sprintf(format, args...))
}

func InternalErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeInternal, SeverityCritical, fmt.Sprintf(format, args...))
}

// IsFatal reports whether err (or anything it wraps) is a critical *Error.
func IsFatal(err error) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.IsFatal()
	}
	return false
}

// GetType returns the category of err, ErrorTypeInternal for foreign errors.
func GetType(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeInternal
}

// GetSeverity returns the severity of err, SeverityHigh for foreign errors.
func GetSeverity(err error) Severity {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Severity
	}
	return SeverityHigh
}

// IsType reports whether err wraps an *Error of the given type.
func IsType(err error, errType ErrorType) bool {
	return stderrors.Is(err, &Error{Type: errType})
}
