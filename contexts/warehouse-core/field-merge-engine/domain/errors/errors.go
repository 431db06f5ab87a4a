package errors

import "errors"

var (
	ErrEmptyBatchID       = errors.New("merge batch id is required")
	ErrCrosswalkNotReady  = errors.New("crosswalk entries are missing for the batch")
	ErrConflictLogFailure = errors.New("conflict log append failed")
)
