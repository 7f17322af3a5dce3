package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotAuthenticated is returned when an authenticated call has no ID token to attach.
	ErrNotAuthenticated = errors.New("user not authenticated")
	// ErrValidation marks form values that must not be sent to the backend.
	ErrValidation = errors.New("validation failed")
)
