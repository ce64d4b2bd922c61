package app

import (
	"context"
	"fmt"

	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/store"
)

// Gameplay returns a copy of the current snapshot: the solo snapshot for a
// student, the active session's snapshot for a teacher.
func (a *App) Gameplay() (*gameplay.Snapshot, error) {
	if a.role == backup.Student {
		return a.solo.Clone(), nil
	}
	s, ok := a.sessions.Active()
	if !ok {
		return nil, ErrNoActiveSession
	}
	return s.Gameplay, nil
}

// EditGameplay runs edit on the current snapshot. When edit reports a
// change the snapshot is saved and an autosave scheduled.
func (a *App) EditGameplay(ctx context.Context, edit func(*gameplay.Snapshot) bool) (bool, error) {
	snap, err := a.Gameplay()
	if err != nil {
		return false, err
	}
	if !edit(snap) {
		return false, nil
	}
	if err := a.SaveGameplay(ctx, snap); err != nil {
		return false, err
	}
	return true, nil
}

// SaveGameplay replaces the current snapshot with snap. A student's
// snapshot goes to the local store; a teacher's into the active session.
// Either way an autosave is scheduled.
func (a *App) SaveGameplay(ctx context.Context, snap *gameplay.Snapshot) error {
	if a.role == backup.Student {
		a.solo = snap.Clone()
		a.persistSolo(ctx)
		a.schedule(backup.Student, backup.StudentKey, a.solo.Export())
		return nil
	}
	id := a.sessions.ActiveID()
	if id == "" {
		return ErrNoActiveSession
	}
	if err := a.sessions.UpdateGameplay(ctx, id, snap); err != nil {
		return fmt.Errorf("save gameplay: %w", err)
	}
	a.scheduleSession(id)
	return nil
}

func (a *App) persistSolo(ctx context.Context) {
	data, err := gameplay.Encode(a.solo)
	if err != nil {
		a.logger.Warn("unable to encode gameplay", "error", err)
		return
	}
	a.store.Write(ctx, store.KeyGameplay, data, "")
}
