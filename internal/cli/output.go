package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/okian/plushub/internal/domain/model"
	"github.com/okian/plushub/internal/domain/mutation"
	"github.com/okian/plushub/internal/domain/validation"
	"github.com/okian/plushub/internal/domain/view"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The server or a component refused the action
	ExitCommandError = 2 // Bad flags, config or connectivity
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported is set when the command already printed the message.
	Reported bool
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// IsReported reports whether err was already shown to the user by the
// command that returned it.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printer renders command results as text or JSON.
type printer struct {
	format string
	out    io.Writer
}

func (p printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Notify implements mutation.Notifier by printing the toast.
func (p printer) Notify(_ context.Context, n model.Notification) error {
	if p.format == "json" {
		return p.json(n)
	}
	p.line("[%s] %s", n.Kind, n.Message)
	return nil
}

// fieldErrors prints per-field validation messages.
func (p printer) fieldErrors(fe validation.FieldErrors) {
	if p.format == "json" {
		_ = p.json(fe)
		return
	}
	for _, f := range fe {
		p.line("  %s: %s", f.Field, f.Message)
	}
}

// failed converts a mutation error into an ExitError. Errors from the guard
// or the send have been shown by the notifier and field errors are listed
// here; both come back marked as reported. Refusals that never reach the
// notifier are left for the caller to print.
func (p printer) failed(err error) error {
	exitErr := WrapExitError(ExitFailure, mutation.Message(err), err)
	switch {
	case p.listFields(err):
		exitErr.Reported = true
	case errors.Is(err, mutation.ErrBusy), errors.Is(err, mutation.ErrUnmounted), errors.Is(err, view.ErrNotAllowed):
		// refused before the notifier ran
	default:
		exitErr.Reported = true
	}
	return exitErr
}

// rejected is failed for calls made without a notifier.
func (p printer) rejected(err error) error {
	exitErr := WrapExitError(ExitFailure, mutation.Message(err), err)
	exitErr.Reported = p.listFields(err)
	return exitErr
}

// listFields prints the field errors carried by err, if any.
func (p printer) listFields(err error) bool {
	var (
		fe     validation.FieldErrors
		remote interface{ FieldErrors() validation.FieldErrors }
	)
	if errors.As(err, &remote) {
		fe = remote.FieldErrors()
	} else {
		errors.As(err, &fe)
	}
	if len(fe) == 0 {
		return false
	}
	p.line("invalid input:")
	p.fieldErrors(fe)
	return true
}
