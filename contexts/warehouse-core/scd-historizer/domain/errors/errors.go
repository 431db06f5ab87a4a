package errors

import "errors"

var (
	ErrEmptyBatchID       = errors.New("historization batch id is required")
	ErrMergeNotReady      = errors.New("merged records are missing for the batch")
	ErrIntegrityViolation = errors.New("more than one current dimension version")
	ErrVersionNotFound    = errors.New("dimension version not found")
)
