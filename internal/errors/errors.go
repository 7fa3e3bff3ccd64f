package errors

import (
	stderrors "errors"
	"fmt"

	"go.uber.org/multierr"
)

// CortexError is implemented by every error the code generator reports.
type CortexError interface {
	error
	ErrorCode() ErrorCode
	Location() SourceLocation
	Context() map[string]any
	Suggestions() []string
	Unwrap() error
}

// ErrorCode represents the type of error that occurred
type ErrorCode int

const (
	UnknownErrorCode ErrorCode = iota
	SyntaxErrorCode
	ValidationErrorCode
	SchemaErrorCode
	DiscoveryErrorCode
	GenerationErrorCode
	TemplateErrorCode
	FileSystemErrorCode
	ConfigurationErrorCode
)

// String returns the string representation of the error code
func (e ErrorCode) String() string {
	switch e {
	case SyntaxErrorCode:
		return "SyntaxError"
	case ValidationErrorCode:
		return "ValidationError"
	case SchemaErrorCode:
		return "SchemaError"
	case DiscoveryErrorCode:
		return "DiscoveryError"
	case GenerationErrorCode:
		return "GenerationError"
	case TemplateErrorCode:
		return "TemplateError"
	case FileSystemErrorCode:
		return "FileSystemError"
	case ConfigurationErrorCode:
		return "ConfigurationError"
	default:
		return "UnknownError"
	}
}

// SourceLocation represents where an error occurred in source code
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (s SourceLocation) String() string {
	if s.File == "" {
		return "unknown location"
	}
	if s.Line == 0 {
		return s.File
	}
	if s.Column == 0 {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// IsEmpty returns true if the location has no useful information
func (s SourceLocation) IsEmpty() bool {
	return s.File == ""
}

// BaseError is the common CortexError implementation.
type BaseError struct {
	Code        ErrorCode
	Message     string
	Loc         SourceLocation
	Cause       error
	ContextData map[string]any
	Hints       []string
}

func (e *BaseError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Loc.IsEmpty() {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Loc.String(), msg)
}

func (e *BaseError) ErrorCode() ErrorCode { return e.Code }

func (e *BaseError) Location() SourceLocation { return e.Loc }

func (e *BaseError) Context() map[string]any {
	if e.ContextData == nil {
		return map[string]any{}
	}
	return e.ContextData
}

func (e *BaseError) Suggestions() []string { return e.Hints }

func (e *BaseError) Unwrap() error { return e.Cause }

// WithLocation adds location information to the error
func (e *BaseError) WithLocation(loc SourceLocation) *BaseError {
	e.Loc = loc
	return e
}

// WithContext adds context data to the error
func (e *BaseError) WithContext(key string, value any) *BaseError {
	if e.ContextData == nil {
		e.ContextData = make(map[string]any)
	}
	e.ContextData[key] = value
	return e
}

// WithSuggestion adds a hint for fixing the error
func (e *BaseError) WithSuggestion(suggestions ...string) *BaseError {
	e.Hints = append(e.Hints, suggestions...)
	return e
}

// New creates a new BaseError with the specified code and message
func New(code ErrorCode, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

// Newf creates a new BaseError with formatted message
func Newf(code ErrorCode, format string, args ...any) *BaseError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new error that wraps another error
func Wrap(code ErrorCode, message string, cause error) *BaseError {
	return &BaseError{Code: code, Message: message, Cause: cause}
}

// Wrapf creates a new error that wraps another error with formatted message
func Wrapf(code ErrorCode, cause error, format string, args ...any) *BaseError {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// SyntaxError reports a malformed annotation at loc.
func SyntaxError(loc SourceLocation, format string, args ...any) *BaseError {
	return Newf(SyntaxErrorCode, format, args...).WithLocation(loc)
}

// ValidationError reports a parameter that violates an annotation schema.
func ValidationError(loc SourceLocation, parameter, expected, actual string) *BaseError {
	return Newf(ValidationErrorCode, "invalid value for %s: expected %s, got %s", parameter, expected, actual).
		WithLocation(loc).
		WithContext("parameter", parameter)
}

// DiscoveryError reports a declaration the parser could not turn into a component.
func DiscoveryError(loc SourceLocation, format string, args ...any) *BaseError {
	return Newf(DiscoveryErrorCode, format, args...).WithLocation(loc)
}

// FileSystemError wraps an I/O failure on path.
func FileSystemError(operation, path string, cause error) *BaseError {
	return Wrapf(FileSystemErrorCode, cause, "failed to %s %s", operation, path).WithContext("path", path)
}

// Code returns the ErrorCode of the first CortexError in err's chain.
func Code(err error) ErrorCode {
	var ce CortexError
	if stderrors.As(err, &ce) {
		return ce.ErrorCode()
	}
	return UnknownErrorCode
}

// HasCode reports whether err, or any error combined into it, carries code.
func HasCode(err error, code ErrorCode) bool {
	for _, e := range multierr.Errors(err) {
		if Code(e) == code {
			return true
		}
	}
	return false
}

// Combine merges errors, dropping nils.
func Combine(errs ...error) error {
	return multierr.Combine(errs...)
}

// List splits an error produced by Combine back into its parts.
func List(err error) []error {
	return multierr.Errors(err)
}

// As is errors.As, re-exported so callers need not import both packages.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
