package store

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strconv"
	"testing"
)

// createTestDB opens a fresh SQLite medium in a temp directory.
func createTestDB(t *testing.T, quota int64) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, quota)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestStore wraps medium with a Store whose log output is captured.
func newTestStore(medium Medium) (*Store, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(medium, logger), &buf
}

// timelineRecord builds a minimal timeline progress record.
func timelineRecord(updatedAt int64, filler string) string {
	return `{"attempts":0,"updatedAt":` + strconv.FormatInt(updatedAt, 10) + `,"pad":"` + filler + `"}`
}
