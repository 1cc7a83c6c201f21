package domain

import "errors"

var (
	// ErrValidation marks caller input that fails domain validation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for records that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks state transitions rejected because of current state.
	ErrConflict = errors.New("conflict")
)
