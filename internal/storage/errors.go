package storage

import "errors"

var (
	// ErrNotFound is returned when no bytes are stored under the requested name
	ErrNotFound = errors.New("stored file not found")
	// ErrAlreadyExists is returned when a stored name is already taken
	ErrAlreadyExists = errors.New("stored file already exists")
	// ErrInvalidName is returned for names that are empty or would escape the storage area
	ErrInvalidName = errors.New("invalid stored name")
)
