package source

import "errors"

var (
	// ErrUnavailable marks a source that could not be reached or
	// returned an unusable response.
	ErrUnavailable = errors.New("source unavailable")

	// ErrBadStatus marks a non-2xx upstream response.
	ErrBadStatus = errors.New("unexpected upstream status")
)
