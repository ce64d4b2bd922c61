package session

import "errors"

var (
	// ErrNotFound is returned when no session has the given id.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidStatus is returned for an unknown scene or card status.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrCardExists is returned when adding a card id already in the log.
	ErrCardExists = errors.New("card already in log")

	// ErrCardNotFound is returned when a card id is not in the log.
	ErrCardNotFound = errors.New("card not in log")

	// ErrInvalidCard is returned for a blank card id.
	ErrInvalidCard = errors.New("card id is required")
)
