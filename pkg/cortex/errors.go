package cortex

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies engine and registry failures
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeInvalidDescriptor
	CodeUnsatisfiableDependency
	CodeAmbiguousDependency
	CodeResolutionBudgetExceeded
	CodeInstantiation
	CodePostCreate
	CodePreDestroy
	CodeServiceNotFound
	CodeProxyAlreadyCreated
	CodeAlreadyInitialized
	CodeNotInitialized
)

// Sentinel errors, matched with errors.Is against any *Error of the same code
var (
	ErrInvalidDescriptor        = errors.New("invalid descriptor")
	ErrUnsatisfiableDependency  = errors.New("unsatisfiable dependency")
	ErrAmbiguousDependency      = errors.New("ambiguous dependency")
	ErrResolutionBudgetExceeded = errors.New("resolution budget exceeded")
	ErrInstantiation            = errors.New("instantiation failed")
	ErrPostCreate               = errors.New("post-create hook failed")
	ErrPreDestroy               = errors.New("pre-destroy hook failed")
	ErrServiceNotFound          = errors.New("service not found")
	ErrProxyAlreadyCreated      = errors.New("proxy instance already created")
	ErrAlreadyInitialized       = errors.New("registry already initialized")
	ErrNotInitialized           = errors.New("registry not initialized")
)

var sentinels = map[ErrorCode]error{
	CodeInvalidDescriptor:        ErrInvalidDescriptor,
	CodeUnsatisfiableDependency:  ErrUnsatisfiableDependency,
	CodeAmbiguousDependency:      ErrAmbiguousDependency,
	CodeResolutionBudgetExceeded: ErrResolutionBudgetExceeded,
	CodeInstantiation:            ErrInstantiation,
	CodePostCreate:               ErrPostCreate,
	CodePreDestroy:               ErrPreDestroy,
	CodeServiceNotFound:          ErrServiceNotFound,
	CodeProxyAlreadyCreated:      ErrProxyAlreadyCreated,
	CodeAlreadyInitialized:       ErrAlreadyInitialized,
	CodeNotInitialized:           ErrNotInitialized,
}

// String returns the string representation of the error code
func (c ErrorCode) String() string {
	if err, ok := sentinels[c]; ok {
		return err.Error()
	}
	return "unknown error"
}

// Error is the concrete error returned by the resolver and the registry
type Error struct {
	Code      ErrorCode
	Component string
	Slot      string
	Cause     error
}

func newError(code ErrorCode, component, slot string, cause error) *Error {
	return &Error{Code: code, Component: component, Slot: slot, Cause: cause}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Component != "" {
		fmt.Fprintf(&b, ": %s", e.Component)
	}
	if e.Slot != "" {
		fmt.Fprintf(&b, " (%s)", e.Slot)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel error of the same code
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.Code == e.Code
	}
	return sentinels[e.Code] == target
}

// CodeOf extracts the error code from an error chain, or CodeUnknown
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeUnknown
}
