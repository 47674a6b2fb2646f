package domain

import "errors"

// Store-neutral sentinel errors returned by repositories.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrDuplicateEmail  = errors.New("email already registered")
)
