package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is(err, domain.ErrNotFound) and friends.
var (
	ErrValidation   = errors.New("validation error")
	ErrAuth         = errors.New("authentication failed")
	ErrForbidden    = errors.New("forbidden")
	ErrPrecondition = errors.New("precondition failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// Error is a user-facing failure tagged with one of the kinds above
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed or missing input
func Validation(format string, args ...any) *Error {
	return newError(ErrValidation, format, args...)
}

func Auth(format string, args ...any) *Error {
	return newError(ErrAuth, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(ErrForbidden, format, args...)
}

// Precondition reports a request the current record state does not allow
func Precondition(format string, args ...any) *Error {
	return newError(ErrPrecondition, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(ErrConflict, format, args...)
}

// KindOf returns the kind sentinel carried by err, or nil for unclassified errors
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrAuth, ErrForbidden, ErrPrecondition, ErrNotFound, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// FromStore turns store sentinels into user-facing errors. Errors that already carry
// a kind pass through unchanged.
func FromStore(err error, what string) error {
	if err == nil || KindOf(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return &Error{Kind: ErrNotFound, Message: what + " not found", Err: err}
	case errors.Is(err, ErrStaleWrite):
		return &Error{Kind: ErrConflict, Message: what + " was modified concurrently, retry", Err: err}
	case errors.Is(err, ErrDuplicateEmail):
		return &Error{Kind: ErrConflict, Message: "email already registered", Err: err}
	}
	return err
}
