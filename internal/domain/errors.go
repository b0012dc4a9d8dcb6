package domain

import "errors"

var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an update raced with another writer.
	ErrConflict = errors.New("version conflict")
	// ErrInvalid is returned when an entity breaks one of its invariants.
	ErrInvalid = errors.New("invalid entity")
)
