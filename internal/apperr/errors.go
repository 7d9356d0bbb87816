// Package apperr defines the sentinel errors shared by the store, the
// services and the transports. Wrap them with %w and test with errors.Is.
package apperr

import "errors"

var (
	// ErrNotFound reports a missing vocabulary, tag or dataset.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a write that clashes with current state.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyExists reports a unique name already taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalid reports rejected input.
	ErrInvalid = errors.New("invalid")
)
