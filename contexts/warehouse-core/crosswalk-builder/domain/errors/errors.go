package errors

import "errors"

var (
	ErrEmptyBatchID    = errors.New("crosswalk batch id is required")
	ErrUnknownEntity   = errors.New("crosswalk entity type is not configured")
	ErrReplaceConflict = errors.New("crosswalk batch replace conflict")
)
