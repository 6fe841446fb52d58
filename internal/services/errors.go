package services

import "errors"

var (
	// ErrInvalidCredentials is returned for an unknown username and for a wrong password alike
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrEmptyFilename is returned when an upload has no file name
	ErrEmptyFilename = errors.New("no file selected")
	// ErrDisallowedExtension is returned when an upload extension is not in the allow-list
	ErrDisallowedExtension = errors.New("file type not allowed")
	// ErrFileNotFound is returned when a file record or its bytes do not exist
	ErrFileNotFound = errors.New("file not found")
	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when a username is already registered
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidInput is returned for malformed form values
	ErrInvalidInput = errors.New("invalid input")
	// ErrLastAdmin is returned when an operation would leave no admin account
	ErrLastAdmin = errors.New("at least one admin account is required")
)
