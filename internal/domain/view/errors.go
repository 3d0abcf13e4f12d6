package view

import "errors"

// Sentinel errors for component actions.
var (
	ErrNotAllowed  = errors.New("action not allowed")
	ErrNotEligible = errors.New("not eligible to vouch for this tier")
)
