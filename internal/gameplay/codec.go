package gameplay

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/fablekeep/internal/canon"
)

// SchemaVersion is the version written by Encode.
//
// Version 0 records (no version field) stored items as a list with an
// activeItemIndex; Decode moves them into slots.
const SchemaVersion = 1

// Encode returns the versioned canonical JSON form of s.
func Encode(s *Snapshot) ([]byte, error) {
	doc := s.Export()
	doc["version"] = SchemaVersion
	data, err := canon.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode gameplay snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a stored or imported snapshot into a candidate tree for
// Snapshot.Apply, migrating older versions first. It fails only when data
// is not a JSON object or comes from a newer version.
func Decode(data []byte) (map[string]any, error) {
	tree, err := canon.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode gameplay snapshot: %w", err)
	}
	doc, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode gameplay snapshot: expected object, got %T", tree)
	}
	return Migrate(doc)
}

// Migrate upgrades a candidate tree in place to SchemaVersion.
func Migrate(doc map[string]any) (map[string]any, error) {
	version := 0
	if raw, present := doc["version"]; present {
		n, ok := clampNumber(raw, 0, -1)
		if !ok {
			return nil, fmt.Errorf("decode gameplay snapshot: invalid version %v", raw)
		}
		version = n
	}
	if version > SchemaVersion {
		return nil, fmt.Errorf("decode gameplay snapshot: unsupported version %d", version)
	}
	if version == 0 {
		migrateItemLists(doc)
	}
	doc["version"] = SchemaVersion
	return doc, nil
}

// migrateItemLists fills slots in display order from a version 0 item list.
// Items beyond the last slot are appended to the accessory slot.
func migrateItemLists(doc map[string]any) {
	characters, ok := doc["characters"].([]any)
	if !ok {
		return
	}
	for _, raw := range characters {
		c, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		delete(c, "activeItemIndex")
		list, ok := c["items"].([]any)
		if !ok {
			continue
		}
		var texts []string
		for _, item := range list {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				texts = append(texts, strings.TrimSpace(s))
			}
		}
		slots := make(map[string]any, len(ItemSlots))
		for i, text := range texts {
			if i < len(ItemSlots)-1 {
				slots[string(ItemSlots[i])] = text
				continue
			}
			slots[string(SlotAccessory)] = strings.Join(texts[i:], ", ")
			break
		}
		c["items"] = slots
	}
}

// Load decodes data and applies it to s.
func (s *Snapshot) Load(data []byte) (Report, error) {
	doc, err := Decode(data)
	if err != nil {
		return Report{}, err
	}
	return s.Apply(doc)
}

// MarshalJSON encodes the exported form.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Export())
}

// UnmarshalJSON applies data to the default roster, so the result is
// always a sanitized snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	fresh := NewSnapshot()
	if _, err := fresh.Load(data); err != nil {
		return err
	}
	*s = *fresh
	return nil
}
