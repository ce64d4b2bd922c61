package backup

import "fmt"

// Decision is the outcome of ReconcileLoad.
//
// A resolved decision names the record to load. An unresolved one carries
// both records and their differing paths; the caller settles it with
// Choose or drops it, which changes nothing.
type Decision struct {
	Role       Role
	SessionKey string
	Autosave   *Record
	Manual     *Record
	// Differences lists up to MaxDiffPaths differing field paths when the
	// slots conflict.
	Differences []string

	resolved *Record
}

// Conflict reports whether the caller must choose a slot.
func (d *Decision) Conflict() bool {
	return d.resolved == nil
}

// Resolved returns the authoritative record when no choice is needed.
func (d *Decision) Resolved() (*Record, bool) {
	return d.resolved, d.resolved != nil
}

// Choose returns the record of slot. It works on resolved decisions too,
// as long as the slot exists.
func (d *Decision) Choose(slot Slot) (*Record, error) {
	var rec *Record
	switch slot {
	case Autosave:
		rec = d.Autosave
	case Manual:
		rec = d.Manual
	default:
		return nil, fmt.Errorf("choose %q: %w", slot, ErrUnknownSlot)
	}
	if rec == nil {
		return nil, fmt.Errorf("choose %s: %w", slot, ErrNothingToLoad)
	}
	return rec, nil
}
