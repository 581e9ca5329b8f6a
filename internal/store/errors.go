package store

import "errors"

var (
	// ErrConflict is returned by Insert when a reminder with the same id
	// already exists.
	ErrConflict = errors.New("reminder already exists")

	// ErrNotFound is returned when no reminder has the requested id.
	ErrNotFound = errors.New("reminder not found")
)
