package validation

import "errors"

// ErrInvalid matches every FieldErrors value via errors.Is.
var ErrInvalid = errors.New("validation failed")
