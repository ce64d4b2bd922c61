package store

import (
	"errors"
	"fmt"
)

// QuotaError is returned by a Medium when a write would exceed its capacity.
type QuotaError struct {
	Key    string // Key being written
	Needed int64  // Size of the rejected value in bytes
	Used   int64  // Bytes held by other entries, when known
	Limit  int64  // Configured capacity (0 when the limit came from the disk)
	Err    error  // Underlying driver error, if any
}

// Error implements the error interface.
func (e *QuotaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage full writing %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("storage quota exceeded writing %q: %d + %d bytes > %d limit",
		e.Key, e.Used, e.Needed, e.Limit)
}

func (e *QuotaError) Unwrap() error {
	return e.Err
}

// IsQuotaError returns true if the error is a QuotaError.
// Uses errors.As to handle wrapped errors.
func IsQuotaError(err error) bool {
	var qe *QuotaError
	return errors.As(err, &qe)
}
