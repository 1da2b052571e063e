package matchrepo

import "errors"

var (
	// ErrNotFound indicates the requested match does not exist.
	ErrNotFound = errors.New("match not found")

	// ErrAlreadyExists indicates a match already exists with the provided ID.
	ErrAlreadyExists = errors.New("match already exists")

	// ErrPairExists indicates a match already exists for the unordered pair of profiles.
	ErrPairExists = errors.New("match already exists for pair")
)
