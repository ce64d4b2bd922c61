package app

import "errors"

var (
	// ErrNoActiveSession is returned for teacher actions that need an
	// active session when none is selected.
	ErrNoActiveSession = errors.New("no active session")

	// ErrUnknownScene is returned when a scene id is not in the collection.
	ErrUnknownScene = errors.New("unknown scene")

	// ErrBackupDisabled is returned for backup actions when no remote is
	// configured.
	ErrBackupDisabled = errors.New("backup is not configured")

	// ErrRecordMismatch is returned when a loaded session record belongs to
	// a different session than the one it was stored under.
	ErrRecordMismatch = errors.New("backup record does not match session")
)
