// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios and map
// them onto HTTP statuses: ErrNotFound becomes 404, ErrEmailExists 409,
// ErrTokenMismatch 401.
package repository

import "errors"

// ErrNotFound is returned when an id or code does not resolve to a row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a signup collides with an existing
// email address (unique index on users.email).
var ErrEmailExists = errors.New("email already exists")

// ErrTokenMismatch is returned when a presented refresh token does not
// match the value on record for the user, which indicates a stale or
// reused token.
var ErrTokenMismatch = errors.New("refresh token mismatch")

// ErrDuplicateSession is returned when an order insert collides with an
// existing order for the same checkout session (confirmation replay).
var ErrDuplicateSession = errors.New("order already exists for session")
