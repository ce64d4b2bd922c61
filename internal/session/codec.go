package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fablekeep/internal/canon"
)

// SchemaVersion is the version of the stored registry record.
const SchemaVersion = 1

// Encode returns the stored form of a registry:
//
//	{"version":1,"activeSessionId":"..."|null,"sessions":[...]}
func Encode(sessions []*Session, activeID string) ([]byte, error) {
	list := make([]any, len(sessions))
	for i, s := range sessions {
		list[i] = s.Export()
	}
	var active any
	if activeID != "" {
		active = activeID
	}
	data, err := canon.Marshal(map[string]any{
		"version":         SchemaVersion,
		"activeSessionId": active,
		"sessions":        list,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sessions: %w", err)
	}
	return data, nil
}

// Decode parses a stored registry. Sessions that cannot be read are skipped
// with a warning; a repeated id keeps its first session. The active id is
// dropped when it names no surviving session. A record without a version
// is read as version 1; an unversioned plain list of sessions is accepted
// too.
func Decode(data []byte, now time.Time, logger *slog.Logger) ([]*Session, string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tree, err := canon.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("decode sessions: %w", err)
	}

	var list []any
	var activeID string
	switch doc := tree.(type) {
	case []any:
		list = doc
	case map[string]any:
		if v, ok := doc["version"]; ok {
			n, ok := v.(json.Number)
			if !ok {
				return nil, "", fmt.Errorf("decode sessions: invalid version %v", v)
			}
			if version, err := n.Int64(); err != nil || version > SchemaVersion {
				return nil, "", fmt.Errorf("decode sessions: unsupported version %v", v)
			}
		}
		list, _ = doc["sessions"].([]any)
		activeID, _ = doc["activeSessionId"].(string)
	default:
		return nil, "", fmt.Errorf("decode sessions: expected object, got %T", tree)
	}

	sessions := make([]*Session, 0, len(list))
	seen := make(map[string]bool, len(list))
	for i, raw := range list {
		s, err := FromExport(raw, now)
		if err != nil {
			logger.Warn("skipping unreadable session", "index", i, "error", err)
			continue
		}
		if seen[s.ID] {
			logger.Warn("skipping duplicate session", "id", s.ID)
			continue
		}
		seen[s.ID] = true
		sessions = append(sessions, s)
	}
	if !seen[activeID] {
		activeID = ""
	}
	return sessions, activeID, nil
}
