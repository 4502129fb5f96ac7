// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/web layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication. The message never says which credential was wrong.
	ErrUnauthorized = errors.New("bad credentials")

	// ErrForbidden indicates an authenticated caller lacks the required role.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrValidation indicates submitted fields violate the active validation rules.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidArgument indicates a malformed request parameter (negative page, zero size).
	ErrInvalidArgument = errors.New("invalid argument")
)
