package light

import "errors"

var (
	// ErrNotLoaded means the queried position's partition is not
	// resident. Callers treat the result as unknown, not as dark.
	ErrNotLoaded = errors.New("partition not loaded")

	// ErrUninitialized means the partition is resident but its init
	// sequence has not completed; any value would be provisional.
	ErrUninitialized = errors.New("partition light uninitialized")
)
