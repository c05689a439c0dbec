package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique key is already taken.
	ErrDuplicate = errors.New("repository: duplicate key")
)
