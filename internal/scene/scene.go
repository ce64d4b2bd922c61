// Package scene holds the narrative scene records the rest of fablekeep
// consumes read-only, and the directory loader that produces them.
package scene

import "strings"

// EventType tags a timeline entry.
type EventType string

const (
	// Anchor is a fixed, display-only entry.
	Anchor EventType = "anchor"
	// Blank is a slot the player fills; its Text is the canonical answer.
	Blank EventType = "blank"
)

// Event is one position in a scene's timeline.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text"`
}

// VocabularyEntry is a glossary word introduced by a scene.
type VocabularyEntry struct {
	Word       string   `json:"word"`
	Definition string   `json:"definition"`
	Examples   []string `json:"examples,omitempty"`
}

// Narrative is the reading content of a scene.
type Narrative struct {
	Paragraphs []string          `json:"paragraphs"`
	Vocabulary []VocabularyEntry `json:"vocabulary"`
}

// Timeline is the ordered puzzle sequence plus its distractor answers.
type Timeline struct {
	Events      []Event  `json:"events"`
	Distractors []string `json:"distractors"`
}

// Scene is one loaded scene file. ID is the file name without ".json".
type Scene struct {
	ID        string    `json:"-"`
	Narrative Narrative `json:"narrative"`
	Timeline  Timeline  `json:"timeline"`
}

// IsBlank reports whether index denotes a Blank event.
func (s *Scene) IsBlank(index int) bool {
	if s == nil || index < 0 || index >= len(s.Timeline.Events) {
		return false
	}
	return s.Timeline.Events[index].Type == Blank
}

// BlankIndices returns the positions of every Blank event in order.
func (s *Scene) BlankIndices() []int {
	if s == nil {
		return nil
	}
	var out []int
	for i, ev := range s.Timeline.Events {
		if ev.Type == Blank {
			out = append(out, i)
		}
	}
	return out
}

// BlankTexts returns the canonical answers in timeline order.
func (s *Scene) BlankTexts() []string {
	var out []string
	for _, i := range s.BlankIndices() {
		out = append(out, s.Timeline.Events[i].Text)
	}
	return out
}

// VocabularyIndex maps lower-cased words to their entries. Later entries
// win when a word repeats.
func VocabularyIndex(s *Scene) map[string]VocabularyEntry {
	index := make(map[string]VocabularyEntry)
	if s == nil {
		return index
	}
	for _, entry := range s.Narrative.Vocabulary {
		index[strings.ToLower(entry.Word)] = entry
	}
	return index
}

// Collection is an ordered set of scenes.
type Collection struct {
	Scenes []*Scene
}

// Get returns the scene with id, or nil.
func (c *Collection) Get(id string) *Scene {
	if c == nil {
		return nil
	}
	for _, s := range c.Scenes {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// IDs returns scene ids in collection order.
func (c *Collection) IDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.Scenes))
	for i, s := range c.Scenes {
		ids[i] = s.ID
	}
	return ids
}
