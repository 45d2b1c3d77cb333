package database

import "errors"

// Sentinel errors returned by every DatabaseInterface implementation.
// Handlers translate these into the response envelope; anything else is a
// transient/infrastructure failure.
var (
	// ErrNotFound indicates a missing user/organization/membership/notification.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a uniqueness violation: duplicate email, duplicate
	// organization name or slug, or a second membership for the same
	// (user, organization) pair.
	ErrConflict = errors.New("record already exists")
)
