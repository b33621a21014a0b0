package models

import "errors"

var (
	// ErrNotFound is returned when a conversation or document set does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conversation identifier belongs to another user.
	ErrConflict = errors.New("conflict")
)
