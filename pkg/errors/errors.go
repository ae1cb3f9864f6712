// Package errors defines the failure taxonomy every use case reports through.
// Callers branch on Kind, never on the message text.
package errors

import (
	"errors"
	"fmt"
)

// Kind 失败类别
type Kind int

const (
	// KindUnexpected storage or unforeseen failure; details are never exposed.
	KindUnexpected Kind = iota
	// KindValidation malformed or missing input, detected before storage access.
	KindValidation
	// KindNotFound referenced entity does not exist.
	KindNotFound
	// KindConflict operation violates a business invariant.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "unexpected"
	}
}

// Error is a categorised failure with an operator-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindUnexpected {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a failure of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a failure with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation 输入校验失败
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// NotFound 实体不存在
func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

// Conflict 违反业务约束
func Conflict(format string, args ...any) *Error {
	return Newf(KindConflict, format, args...)
}

// ErrUnexpected is the opaque message surfaced for storage faults.
var ErrUnexpected = New(KindUnexpected, "Ein unerwarteter Fehler ist aufgetreten")

// Internal wraps a lower-layer fault as an Unexpected failure. The cause stays
// reachable through errors.Unwrap for logging but is not part of Error().
func Internal(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Kind: KindUnexpected, Message: ErrUnexpected.Message, Err: err}
}

// Wrap attaches a cause to a sentinel while keeping errors.Is(sentinel) true.
func Wrap(sentinel *Error, err error) error {
	return &wrapped{sentinel: sentinel, err: err}
}

type wrapped struct {
	sentinel *Error
	err      error
}

func (w *wrapped) Error() string {
	return w.sentinel.Error() + ": " + w.err.Error()
}

func (w *wrapped) Unwrap() []error { return []error{w.sentinel, w.err} }

// KindOf reports the category of err. Errors outside the taxonomy are
// Unexpected.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnexpected
}

// IsKind reports whether err belongs to the given category.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the operator-facing message of err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrUnexpected.Message
}
