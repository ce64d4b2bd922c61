package backup

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/fablekeep/internal/clock"
)

// MemoryRemote is an in-process Remote.
//
// Thread-safety: safe for concurrent use; autosave pushes run on their own
// goroutines.
type MemoryRemote struct {
	mu    sync.Mutex
	clock clock.Clock
	files map[string]*memoryFile
	seq   int
	fail  error
	calls map[string]int
}

type memoryFile struct {
	tags     Tags
	body     []byte
	modified time.Time
}

// NewMemoryRemote creates an empty remote. A nil clock uses the system
// clock.
func NewMemoryRemote(c clock.Clock) *MemoryRemote {
	if c == nil {
		c = clock.System{}
	}
	return &MemoryRemote{
		clock: c,
		files: make(map[string]*memoryFile),
		calls: make(map[string]int),
	}
}

// SetFailure makes every later call return err; nil restores service.
func (m *MemoryRemote) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls returns how many times op ("find", "create", "update", "get") ran.
func (m *MemoryRemote) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Len returns the number of stored records.
func (m *MemoryRemote) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// Find implements Remote.
func (m *MemoryRemote) Find(_ context.Context, tags Tags) (File, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["find"]++
	if m.fail != nil {
		return File{}, false, m.fail
	}
	ids := make([]string, 0, len(m.files))
	for id := range m.files {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if f := m.files[id]; f.tags == tags {
			return File{ID: id, Tags: f.tags, ModifiedAt: f.modified}, true, nil
		}
	}
	return File{}, false, nil
}

// Create implements Remote.
func (m *MemoryRemote) Create(_ context.Context, tags Tags, body []byte) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["create"]++
	if m.fail != nil {
		return File{}, m.fail
	}
	m.seq++
	id := fmt.Sprintf("file-%04d", m.seq)
	f := &memoryFile{tags: tags, body: slices.Clone(body), modified: m.clock.Now()}
	m.files[id] = f
	return File{ID: id, Tags: tags, ModifiedAt: f.modified}, nil
}

// Update implements Remote.
func (m *MemoryRemote) Update(_ context.Context, id string, body []byte) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["update"]++
	if m.fail != nil {
		return File{}, m.fail
	}
	f, ok := m.files[id]
	if !ok {
		return File{}, fmt.Errorf("file %q not found", id)
	}
	f.body = slices.Clone(body)
	f.modified = m.clock.Now()
	return File{ID: id, Tags: f.tags, ModifiedAt: f.modified}, nil
}

// Get implements Remote.
func (m *MemoryRemote) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["get"]++
	if m.fail != nil {
		return nil, m.fail
	}
	f, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("file %q not found", id)
	}
	return slices.Clone(f.body), nil
}
