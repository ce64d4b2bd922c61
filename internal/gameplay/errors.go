package gameplay

import (
	"errors"
	"fmt"
)

// ValidationError is returned when a snapshot candidate cannot be repaired
// field by field.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid gameplay snapshot: %s", e.Reason)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
