package qpath

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies the category of a QPath error.
type ErrorCode int

const (
	// ErrSyntax indicates a malformed QPath or predicate.
	ErrSyntax ErrorCode = iota + 1
	// ErrUnsupportedOperator indicates an operator that scans but is not supported.
	ErrUnsupportedOperator
	// ErrValueSyntax indicates a predicate value that is not a valid literal.
	ErrValueSyntax
)

func (c ErrorCode) String() string {
	switch c {
	case ErrSyntax:
		return "syntax error"
	case ErrUnsupportedOperator:
		return "unsupported operator"
	case ErrValueSyntax:
		return "invalid value"
	default:
		return "unknown error"
	}
}

// Error is the structured error returned by Parse.
type Error struct {
	Code ErrorCode
	// Message is a human-readable description.
	Message string
	// Fragment is the offending piece of the QPath.
	Fragment string
	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("qpath: %s: %s", e.Code, e.Message)
	if e.Fragment != "" {
		msg += fmt.Sprintf(" (in %q)", e.Fragment)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// SyntaxError is returned for empty paths, empty predicates and predicates
// that do not follow `name OP value`.
type SyntaxError struct{ Err *Error }

func (e *SyntaxError) Error() string { return e.Err.Error() }
func (e *SyntaxError) Unwrap() error { return e.Err }

// UnsupportedOperatorError is returned when the operator is lexically valid
// but not one of "=" and "~=".
type UnsupportedOperatorError struct {
	Err      *Error
	Operator string
}

func (e *UnsupportedOperatorError) Error() string { return e.Err.Error() }
func (e *UnsupportedOperatorError) Unwrap() error { return e.Err }

// ValueSyntaxError is returned when a predicate value cannot be evaluated as
// a literal, or a "~=" value is not a valid regular expression.
type ValueSyntaxError struct{ Err *Error }

func (e *ValueSyntaxError) Error() string { return e.Err.Error() }
func (e *ValueSyntaxError) Unwrap() error { return e.Err }

func newSyntaxError(fragment, format string, args ...interface{}) error {
	return &SyntaxError{&Error{Code: ErrSyntax, Message: fmt.Sprintf(format, args...), Fragment: fragment}}
}

func newOperatorError(fragment, op string) error {
	return &UnsupportedOperatorError{
		Err:      &Error{Code: ErrUnsupportedOperator, Message: fmt.Sprintf("operator %q is not supported", op), Fragment: fragment},
		Operator: op,
	}
}

func newValueError(fragment string, cause error) error {
	return &ValueSyntaxError{&Error{Code: ErrValueSyntax, Message: "cannot evaluate value", Fragment: fragment, Cause: cause}}
}

// IsSyntaxError reports whether err is a QPath grammar error.
func IsSyntaxError(err error) bool {
	return hasCode(err, ErrSyntax)
}

// IsUnsupportedOperator reports whether err is an unsupported operator error.
func IsUnsupportedOperator(err error) bool {
	return hasCode(err, ErrUnsupportedOperator)
}

// IsValueSyntaxError reports whether err is a literal evaluation error.
func IsValueSyntaxError(err error) bool {
	return hasCode(err, ErrValueSyntax)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// ========================================
// Resolution errors
// ========================================

// ControlNotFoundError means the locator chain matched no control.
type ControlNotFoundError struct {
	QPath *QPath
	// FailedAt is the index of the first locator that matched nothing,
	// or -1 when the path was not diagnosed.
	FailedAt int
	// Unresolved is the longest suffix of the path that could not be
	// resolved, rendered with the path separator. Empty when not diagnosed.
	Unresolved string
}

func (e *ControlNotFoundError) Error() string {
	if e.Unresolved != "" {
		return fmt.Sprintf("control %s not found, unresolved part: %s", e.QPath.Source(), e.Unresolved)
	}
	return fmt.Sprintf("control %s not found", e.QPath.Source())
}

// AmbiguousControlError means the locator chain matched more than one
// control and no disambiguation target was given (or none converged).
type AmbiguousControlError struct {
	QPath      *QPath
	Candidates []int64
}

func (e *AmbiguousControlError) Error() string {
	hashes := make([]string, len(e.Candidates))
	for i, h := range e.Candidates {
		hashes[i] = fmt.Sprintf("%x", h)
	}
	return fmt.Sprintf("control %s is ambiguous, %d matches: [%s]", e.QPath.Source(), len(e.Candidates), strings.Join(hashes, ", "))
}

// IsNotFound reports whether err is a ControlNotFoundError.
func IsNotFound(err error) bool {
	var e *ControlNotFoundError
	return errors.As(err, &e)
}

// IsAmbiguous reports whether err is an AmbiguousControlError.
func IsAmbiguous(err error) bool {
	var e *AmbiguousControlError
	return errors.As(err, &e)
}
