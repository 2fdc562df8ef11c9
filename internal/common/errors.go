package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorForbidden     = errors.New("forbidden")
	ErrVersionConflict = errors.New("version conflict")

	// Validation errors.
	ErrorValidation = errors.New("validation error")
)
