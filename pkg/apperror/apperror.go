// Package apperror holds the error taxonomy shared by the timesheet workflow. Every failure carries the
// specific rule that was violated as its message and one of the sentinel kinds below, so callers can
// branch with errors.Is and still show the message to the user.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation covers malformed input and business-rule violations (hour caps, duplicates).
	ErrValidation = errors.New("validation error")
	// ErrConflict covers uniqueness violations such as a second timesheet for the same week.
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")
	// ErrForbidden covers role and ownership guard failures, self-approval included.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidState covers lifecycle violations: wrong status for a transition, empty submission.
	ErrInvalidState = errors.New("invalid timesheet state")
)

type Error struct {
	kind    error
	message string
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Unwrap() error {
	return e.kind
}

// Kind returns the sentinel the error belongs to.
func (e *Error) Kind() error {
	return e.kind
}

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func Conflict(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newError(ErrForbidden, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(ErrInvalidState, format, args...)
}

// IsDomain reports whether err belongs to the taxonomy, i.e. is recoverable by the caller.
func IsDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
