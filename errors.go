package gcutils

import "github.com/pkg/errors"

// OutOfMemoryError is the error returned when an allocation cannot be satisfied from the active
// half-space, even after a collection has been attempted
var OutOfMemoryError error = errors.New("out of heap memory")
