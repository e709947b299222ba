package session

import "errors"

var (
	// ErrNotFound is returned for any operation on an unknown session id.
	ErrNotFound = errors.New("session not found")

	// ErrDuplicateID is returned when a store insert collides with an
	// existing id. Identifier generation makes this unreachable in
	// practice; it is an internal invariant violation, not a user error.
	ErrDuplicateID = errors.New("duplicate session id")

	// ErrSessionBusy is returned when a query is submitted to a session
	// that already has one in flight.
	ErrSessionBusy = errors.New("session is already processing a query")

	// ErrSessionClosed is returned when a query is submitted to a session
	// that has been torn down.
	ErrSessionClosed = errors.New("session is closed")
)
