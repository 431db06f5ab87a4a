package errors

import "errors"

var (
	ErrEmptyBatchID       = errors.New("pipeline batch id is required")
	ErrUnknownEntityType  = errors.New("pipeline entity type is not configured")
	ErrDependencyNotReady = errors.New("pipeline dependency crosswalk is not ready")
	ErrRunActive          = errors.New("a pipeline run is already active for the entity type")
	ErrRunNotFound        = errors.New("pipeline run not found")
)
