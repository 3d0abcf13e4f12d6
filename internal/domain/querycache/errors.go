package querycache

import "errors"

// ErrTypeMismatch is returned when a cached value has a different type than
// the query reading it.
var ErrTypeMismatch = errors.New("cached value has unexpected type")
