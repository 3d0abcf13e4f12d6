package service

import (
	"errors"
	"fmt"
)

// Sentinel kinds for rejected operations. The API adapter maps them to
// HTTP statuses.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrVotingInProgress = errors.New("voting in progress")
	ErrNotEligible      = errors.New("not eligible")
	ErrDuplicate        = errors.New("already exists")
	ErrInvalidSeed      = errors.New("invalid seed")
)

// Error is a rejected operation. Message is shown to the user as is.
type Error struct {
	Op      string
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UserMessage returns the display-ready message.
func (e *Error) UserMessage() string { return e.Message }

func reject(op string, kind error, msg string) error {
	return &Error{Op: op, Kind: kind, Message: msg}
}

func rejectf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func invalid(op string, err error) error {
	return &Error{Op: op, Kind: ErrValidation, Message: err.Error(), Err: err}
}
