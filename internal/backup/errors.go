package backup

import (
	"errors"
	"fmt"
)

var (
	// ErrNothingToLoad is returned by ReconcileLoad when neither slot exists.
	ErrNothingToLoad = errors.New("no backup to load")

	// ErrNoPendingDecision is returned when resolving a load that was never
	// started or was already resolved or cancelled.
	ErrNoPendingDecision = errors.New("no pending backup decision")

	// ErrMalformedRecord is returned for a remote body that is not a backup
	// record.
	ErrMalformedRecord = errors.New("malformed backup record")

	// ErrUnknownSlot is returned for a slot other than autosave or manual.
	ErrUnknownSlot = errors.New("unknown backup slot")
)

// RemoteError wraps a failure of the remote store.
type RemoteError struct {
	Op   string
	Slot Slot
	Err  error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("backup %s %s: %v", e.Op, e.Slot, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsRemoteError checks if an error is a RemoteError.
func IsRemoteError(err error) bool {
	var target *RemoteError
	return errors.As(err, &target)
}
