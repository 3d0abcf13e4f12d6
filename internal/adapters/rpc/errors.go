package rpc

import (
	"errors"
	"fmt"

	"github.com/okian/plushub/internal/domain/validation"
)

// Sentinel kinds for client errors.
var (
	ErrRemote    = errors.New("remote rejected request")
	ErrTransport = errors.New("transport failed")
	ErrDecode    = errors.New("decode response failed")
)

// RemoteError is a non-2xx answer from the server. Message is display-ready.
type RemoteError struct {
	Status  int
	Code    string
	Message string
	Fields  []validation.FieldError
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %d %s: %s", e.Status, e.Code, e.Message)
}

// UserMessage returns the server's display-ready message.
func (e *RemoteError) UserMessage() string { return e.Message }

// Is matches ErrRemote, and validation.ErrInvalid when the server reported
// field errors.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case validation.ErrInvalid:
		return len(e.Fields) > 0
	default:
		return false
	}
}

// FieldErrors returns the server-side field errors, if any.
func (e *RemoteError) FieldErrors() validation.FieldErrors {
	return validation.FieldErrors(e.Fields)
}
