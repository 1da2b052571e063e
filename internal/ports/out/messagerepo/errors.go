package messagerepo

import "errors"

var (
	// ErrNotFound indicates the requested message does not exist.
	ErrNotFound = errors.New("message not found")

	// ErrAlreadyExists indicates a message already exists with the provided ID.
	ErrAlreadyExists = errors.New("message already exists")
)
