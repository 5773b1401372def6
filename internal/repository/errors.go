package repository

import "errors"

var (
	// ErrNotFound covers both missing rows and rows owned by someone else.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint (username, profile per user) fails.
	ErrDuplicate = errors.New("record already exists")
)
