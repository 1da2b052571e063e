package profilerepo

import "errors"

var (
	// ErrNotFound indicates the requested profile does not exist.
	ErrNotFound = errors.New("profile not found")

	// ErrAlreadyExists indicates a profile already exists with the provided ID.
	ErrAlreadyExists = errors.New("profile already exists")

	// ErrUserAlreadyBound indicates the owning account already has a profile.
	ErrUserAlreadyBound = errors.New("profile user already bound")
)
