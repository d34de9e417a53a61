package app

import "errors"

var (
	// ErrInvalidLimit marks a page size outside the allowed range.
	ErrInvalidLimit = errors.New("limit out of range")
)
