package app

import (
	"context"
	"fmt"

	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/session"
)

// PushBackup writes the current record to the manual slot.
func (a *App) PushBackup(ctx context.Context) (backup.File, error) {
	if a.backup == nil {
		return backup.File{}, ErrBackupDisabled
	}
	key, err := a.SessionKey()
	if err != nil {
		return backup.File{}, err
	}
	payload, err := a.payload(key)
	if err != nil {
		return backup.File{}, err
	}
	return a.backup.Push(ctx, backup.Manual, a.role, key, payload)
}

// PullBackup reads one slot of the current record without applying it.
func (a *App) PullBackup(ctx context.Context, slot backup.Slot) (*backup.Record, bool, error) {
	if a.backup == nil {
		return nil, false, ErrBackupDisabled
	}
	key, err := a.SessionKey()
	if err != nil {
		return nil, false, err
	}
	return a.backup.Pull(ctx, slot, a.role, key)
}

// WaitAutosave blocks until autosave pushes already started have finished.
func (a *App) WaitAutosave() {
	if a.autosaver != nil {
		a.autosaver.Wait()
	}
}

// FlushAutosave pushes any pending autosave now.
func (a *App) FlushAutosave(ctx context.Context) error {
	if a.autosaver == nil {
		return nil
	}
	return a.autosaver.Flush(ctx)
}

// BeginLoad reconciles both slots of the current record. A resolved
// decision is applied at once. A conflict is kept pending until
// ResolveLoad or CancelLoad; nothing changes in the meantime.
func (a *App) BeginLoad(ctx context.Context) (*backup.Decision, error) {
	if a.backup == nil {
		return nil, ErrBackupDisabled
	}
	key, err := a.SessionKey()
	if err != nil {
		return nil, err
	}
	d, err := a.backup.ReconcileLoad(ctx, a.role, key)
	if err != nil {
		return nil, err
	}
	a.pending = nil
	if rec, ok := d.Resolved(); ok {
		if err := a.applyRecord(ctx, d, rec); err != nil {
			return nil, err
		}
		return d, nil
	}
	a.pending = d
	return d, nil
}

// PendingLoad returns the unresolved decision, if any.
func (a *App) PendingLoad() (*backup.Decision, bool) {
	return a.pending, a.pending != nil
}

// ResolveLoad applies the chosen slot of the pending decision.
func (a *App) ResolveLoad(ctx context.Context, slot backup.Slot) error {
	if a.pending == nil {
		return backup.ErrNoPendingDecision
	}
	rec, err := a.pending.Choose(slot)
	if err != nil {
		return err
	}
	d := a.pending
	if err := a.applyRecord(ctx, d, rec); err != nil {
		return err
	}
	a.pending = nil
	return nil
}

// CancelLoad drops the pending decision. Reports whether there was one.
func (a *App) CancelLoad() bool {
	had := a.pending != nil
	a.pending = nil
	return had
}

// applyRecord replaces local state with rec. The loaded data is saved
// locally but not autosaved back to the remote.
func (a *App) applyRecord(ctx context.Context, d *backup.Decision, rec *backup.Record) error {
	if d.Role == backup.Student {
		candidate := rec.Data
		if doc, ok := candidate.(map[string]any); ok {
			migrated, err := gameplay.Migrate(doc)
			if err != nil {
				return fmt.Errorf("load %s backup: %w", rec.Slot, err)
			}
			candidate = migrated
		}
		next := a.solo.Clone()
		report, err := next.Apply(candidate)
		if err != nil {
			return fmt.Errorf("load %s backup: %w", rec.Slot, err)
		}
		a.solo = next
		a.persistSolo(ctx)
		a.logger.Info("loaded backup", "slot", rec.Slot, "outcome", report.Outcome().String())
		return nil
	}

	s, err := session.FromExport(rec.Data, a.clock.Now())
	if err != nil {
		return fmt.Errorf("load %s backup: %w", rec.Slot, err)
	}
	if s.ID != d.SessionKey {
		return fmt.Errorf("load %s backup of %q: %w", rec.Slot, d.SessionKey, ErrRecordMismatch)
	}
	a.sessions.Put(ctx, s)
	a.logger.Info("loaded backup", "slot", rec.Slot, "session", s.ID)
	return nil
}
