package mutation

import "errors"

// Sentinel errors returned by Submit.
var (
	ErrBusy      = errors.New("a submission is already in flight")
	ErrUnmounted = errors.New("component is unmounted")
)
