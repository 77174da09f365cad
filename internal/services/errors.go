package services

import "errors"

var (
	// ErrNotFound covers both genuinely absent resources and resources the
	// principal may not see; callers must not be able to tell them apart.
	ErrNotFound = errors.New("resource not found")

	// ErrForbidden means the principal is identified but lacks capability.
	ErrForbidden = errors.New("access denied")

	// ErrEtagMismatch means another writer committed first; nothing was
	// applied and the caller must refetch and retry.
	ErrEtagMismatch = errors.New("etag mismatch")

	// ErrNotDeleted is returned by restore when the tombstone is not set.
	ErrNotDeleted = errors.New("resource is not deleted")

	// ErrValidation covers field-level constraint failures, rejected before
	// any transaction opens.
	ErrValidation = errors.New("validation failed")

	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrPasswordTooShort   = errors.New("password too short")
)
