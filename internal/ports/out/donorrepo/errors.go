package donorrepo

import "errors"

var (
	// ErrNotFound indicates the requested donor does not exist.
	ErrNotFound = errors.New("donor not found")

	// ErrAlreadyExists indicates a donor already exists with the provided ID.
	ErrAlreadyExists = errors.New("donor already exists")

	// ErrEmailTaken indicates another donor is registered with the same email (case-insensitive).
	ErrEmailTaken = errors.New("donor email already registered")
)
