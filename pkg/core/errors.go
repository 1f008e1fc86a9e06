package core

import "errors"

var (
	// ErrRemoteUnavailable is returned when the remote store cannot be reached.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRemoteRejected is returned when the remote store refuses a write
	// (validation, quota).
	ErrRemoteRejected = errors.New("remote store rejected request")

	// ErrPermissionDenied is returned when media library access is refused.
	ErrPermissionDenied = errors.New("media permission denied")

	// ErrNotFound is returned when an operation references a marker key that
	// is not in the collection.
	ErrNotFound = errors.New("marker not found")
)
