package app

import (
	"context"

	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/session"
)

// CreateSession adds a session and schedules its first autosave.
func (a *App) CreateSession(ctx context.Context, name string) *session.Session {
	s := a.sessions.Create(ctx, name)
	a.scheduleSession(s.ID)
	return s
}

// UpdateSession runs change against the registry for session id and
// schedules an autosave of that session when change succeeds.
func (a *App) UpdateSession(ctx context.Context, id string, change func(ctx context.Context, r *session.Registry) error) error {
	if err := change(ctx, a.sessions); err != nil {
		return err
	}
	a.scheduleSession(id)
	return nil
}

// ResumePoint returns the scene a session should resume at.
func (a *App) ResumePoint(id string) (string, error) {
	s, ok := a.sessions.Get(id)
	if !ok {
		return "", session.ErrNotFound
	}
	return session.DetermineResumePoint(s.SceneProgress, a.scenes.IDs()), nil
}

// SessionKey identifies the record the current role backs up.
func (a *App) SessionKey() (string, error) {
	if a.role == backup.Student {
		return backup.StudentKey, nil
	}
	id := a.sessions.ActiveID()
	if id == "" {
		return "", ErrNoActiveSession
	}
	return id, nil
}

// payload returns the document backed up for key.
func (a *App) payload(key string) (any, error) {
	if a.role == backup.Student {
		return a.solo.Export(), nil
	}
	s, ok := a.sessions.Get(key)
	if !ok {
		return nil, session.ErrNotFound
	}
	return s.Export(), nil
}

func (a *App) scheduleSession(id string) {
	if a.autosaver == nil {
		return
	}
	s, ok := a.sessions.Get(id)
	if !ok {
		return
	}
	a.autosaver.Schedule(backup.Teacher, id, s.Export())
}

func (a *App) schedule(role backup.Role, key string, payload any) {
	if a.autosaver == nil {
		return
	}
	a.autosaver.Schedule(role, key, payload)
}
