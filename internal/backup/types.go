package backup

import (
	"context"
	"time"
)

// Slot names one of the two backup destinations of a record.
type Slot string

const (
	Autosave Slot = "autosave"
	Manual   Slot = "manual"
)

// Valid reports whether s is a known slot.
func (s Slot) Valid() bool {
	return s == Autosave || s == Manual
}

// Role is the kind of player a backup belongs to.
type Role string

const (
	Student Role = "student"
	Teacher Role = "teacher"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == Student || r == Teacher
}

// StudentKey is the session key of the solo role's single record.
const StudentKey = "student"

// Tags identify a remote record. Remotes find records by tags, never by
// file name.
type Tags struct {
	AppID      string
	Role       Role
	Slot       Slot
	SessionKey string
}

// File describes a stored remote record.
type File struct {
	ID         string
	Tags       Tags
	ModifiedAt time.Time
}

// Remote is a tagged blob store.
type Remote interface {
	// Find returns the record carrying exactly tags. ok is false when none
	// exists.
	Find(ctx context.Context, tags Tags) (file File, ok bool, err error)
	// Create stores body as a new record.
	Create(ctx context.Context, tags Tags, body []byte) (File, error)
	// Update replaces the body of an existing record, keeping its tags.
	Update(ctx context.Context, id string, body []byte) (File, error)
	// Get returns a record's body.
	Get(ctx context.Context, id string) ([]byte, error)
}

// Record is the content of one slot.
type Record struct {
	Slot Slot
	// UpdatedAt is when the payload was pushed, as written by the pusher.
	UpdatedAt time.Time
	// ModifiedAt is the server's timestamp for the stored record.
	ModifiedAt time.Time
	// Data is the payload as a canonical JSON tree.
	Data any
}
