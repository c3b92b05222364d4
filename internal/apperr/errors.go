// Package apperr defines the error taxonomy shared by the store, its
// persistence adapters and the outer surfaces.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks an operation that referenced a page or block id
	// absent from the workspace. Write operations that return it left the
	// workspace untouched.
	ErrNotFound = errors.New("not found")
	// ErrInvalid marks malformed input, such as a block type or category
	// outside the closed vocabularies.
	ErrInvalid = errors.New("invalid input")
	// ErrPersistence marks a snapshot save or load I/O failure.
	ErrPersistence = errors.New("persistence failure")
	// ErrAssist marks a failed call to the external AI collaborator.
	ErrAssist = errors.New("assist failure")
	// ErrMissingCredential is returned without contacting the AI service
	// when no API key is configured.
	ErrMissingCredential = fmt.Errorf("%w: missing credential", ErrAssist)
)

// NotFound returns ErrNotFound annotated with the kind and id that was missing.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// Invalid returns ErrInvalid annotated with the kind and value that was rejected.
func Invalid(kind, value string) error {
	return fmt.Errorf("%s %q: %w", kind, value, ErrInvalid)
}
