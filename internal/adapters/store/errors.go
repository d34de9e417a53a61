package store

import "errors"

var (
	// ErrPersistFailed marks a snapshot batch that could not be written.
	ErrPersistFailed = errors.New("persist failed")
)
