package session

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/roach88/fablekeep/internal/gameplay"
)

// SceneStatus is a scene's progress within a session.
type SceneStatus string

const (
	// NoStatus clears a scene's progress.
	NoStatus SceneStatus = ""
	Started  SceneStatus = "started"
	Finished SceneStatus = "finished"
)

// SleepStatus is the state of a card in the sleep log.
type SleepStatus string

const (
	Sleeping SleepStatus = "sleeping"
	Restless SleepStatus = "restless"
	Waking   SleepStatus = "waking"
)

// Valid reports whether s is a known sleep status.
func (s SleepStatus) Valid() bool {
	return s == Sleeping || s == Restless || s == Waking
}

// SleepCard is an entry of the sleep card log.
type SleepCard struct {
	ID     string
	Status SleepStatus
}

// LostCard is an entry of the lost card log.
type LostCard struct {
	ID   string
	Name string
}

// Session is one teacher-owned play session.
type Session struct {
	ID            string
	Name          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Gameplay      *gameplay.Snapshot
	SceneProgress map[string]SceneStatus
	SleepCards    []SleepCard
	LostCards     []LostCard
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	out := *s
	if s.Gameplay != nil {
		out.Gameplay = s.Gameplay.Clone()
	}
	out.SceneProgress = maps.Clone(s.SceneProgress)
	if out.SceneProgress == nil {
		out.SceneProgress = map[string]SceneStatus{}
	}
	out.SleepCards = slices.Clone(s.SleepCards)
	out.LostCards = slices.Clone(s.LostCards)
	return &out
}

// setSceneStatus applies status to sceneID, demoting any other started
// scene to finished.
func (s *Session) setSceneStatus(sceneID string, status SceneStatus) {
	switch status {
	case NoStatus:
		delete(s.SceneProgress, sceneID)
	case Finished:
		s.SceneProgress[sceneID] = Finished
	case Started:
		for id, st := range s.SceneProgress {
			if st == Started && id != sceneID {
				s.SceneProgress[id] = Finished
			}
		}
		s.SceneProgress[sceneID] = Started
	}
}

// StartedScene returns the scene currently in progress, if any.
func (s *Session) StartedScene() (string, bool) {
	for id, st := range s.SceneProgress {
		if st == Started {
			return id, true
		}
	}
	return "", false
}

// timeLayout is RFC 3339 with fixed millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Export returns the JSON-shaped form of s, the document used for backups
// and per-session export files.
func (s *Session) Export() map[string]any {
	progress := make(map[string]any, len(s.SceneProgress))
	for id, st := range s.SceneProgress {
		progress[id] = string(st)
	}
	sleep := make([]any, len(s.SleepCards))
	for i, c := range s.SleepCards {
		sleep[i] = map[string]any{"id": c.ID, "status": string(c.Status)}
	}
	lost := make([]any, len(s.LostCards))
	for i, c := range s.LostCards {
		lost[i] = map[string]any{"id": c.ID, "name": c.Name}
	}
	snap := s.Gameplay
	if snap == nil {
		snap = gameplay.NewSnapshot()
	}
	return map[string]any{
		"id":            s.ID,
		"name":          s.Name,
		"createdAt":     formatTime(s.CreatedAt),
		"updatedAt":     formatTime(s.UpdatedAt),
		"gameplay":      snap.Export(),
		"sceneProgress": progress,
		"sleepCards":    sleep,
		"lostCards":     lost,
	}
}

// FromExport rebuilds a session from an exported or stored document.
//
// Only a missing id is fatal. Every other field is sanitized: the gameplay
// snapshot goes through the gameplay sanitizer against the default roster,
// unknown scene statuses are dropped, extra started scenes are demoted to
// finished, cards with blank or repeated ids are dropped and unknown sleep
// statuses become sleeping. Unreadable timestamps take now.
func FromExport(raw any, now time.Time) (*Session, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode session: expected object, got %T", raw)
	}
	id, _ := obj["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("decode session: missing id")
	}

	s := &Session{
		ID:            id,
		Name:          sanitizeName(obj["name"]),
		CreatedAt:     parseTime(obj["createdAt"], now),
		UpdatedAt:     parseTime(obj["updatedAt"], now),
		Gameplay:      gameplay.NewSnapshot(),
		SceneProgress: sanitizeProgress(obj["sceneProgress"]),
		SleepCards:    sanitizeSleepCards(obj["sleepCards"]),
		LostCards:     sanitizeLostCards(obj["lostCards"]),
	}
	if doc, ok := obj["gameplay"].(map[string]any); ok {
		if migrated, err := gameplay.Migrate(doc); err == nil {
			// A rejected snapshot keeps the default roster.
			_, _ = s.Gameplay.Apply(migrated)
		}
	}
	return s, nil
}

// defaultName is used when a session has no usable name.
const defaultName = "Untitled session"

func sanitizeName(raw any) string {
	name, _ := raw.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultName
	}
	return name
}

func parseTime(raw any, fallback time.Time) time.Time {
	s, ok := raw.(string)
	if !ok {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t.UTC()
}

func sanitizeProgress(raw any) map[string]SceneStatus {
	out := make(map[string]SceneStatus)
	obj, ok := raw.(map[string]any)
	if !ok {
		return out
	}
	var started []string
	for id, v := range obj {
		st, _ := v.(string)
		switch SceneStatus(st) {
		case Started:
			started = append(started, id)
			out[id] = Started
		case Finished:
			out[id] = Finished
		}
	}
	// Keep the last started scene in key order.
	slices.Sort(started)
	for i := 0; i < len(started)-1; i++ {
		out[started[i]] = Finished
	}
	return out
}

func sanitizeSleepCards(raw any) []SleepCard {
	list, _ := raw.([]any)
	out := []SleepCard{}
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := cardID(obj["id"])
		if id == "" || slices.ContainsFunc(out, func(c SleepCard) bool { return c.ID == id }) {
			continue
		}
		st, _ := obj["status"].(string)
		status := SleepStatus(st)
		if !status.Valid() {
			status = Sleeping
		}
		out = append(out, SleepCard{ID: id, Status: status})
	}
	return out
}

func sanitizeLostCards(raw any) []LostCard {
	list, _ := raw.([]any)
	out := []LostCard{}
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := cardID(obj["id"])
		if id == "" || slices.ContainsFunc(out, func(c LostCard) bool { return c.ID == id }) {
			continue
		}
		name, _ := obj["name"].(string)
		out = append(out, LostCard{ID: id, Name: strings.TrimSpace(name)})
	}
	return out
}

// cardID accepts a string or a number; printed cards carry numbers.
func cardID(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	}
	return ""
}
