package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrAmbiguousIdentity means more than one user row shares a token
	// identifier. The schema's UNIQUE constraint makes this unreachable in a
	// healthy database; it can only surface after a bad hand migration.
	ErrAmbiguousIdentity = errors.New("ambiguous identity")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with key %s", resource, key),
	}
}

// Unauthenticated returns an AppError for requests with no verified identity.
// HTTP handlers map this to 401 Unauthorized.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// AmbiguousIdentity returns an AppError for a token identifier that resolves
// to more than one user row.
func AmbiguousIdentity(token string) *AppError {
	return &AppError{
		Err:     ErrAmbiguousIdentity,
		Message: fmt.Sprintf("more than one user shares token identifier %s", token),
	}
}
