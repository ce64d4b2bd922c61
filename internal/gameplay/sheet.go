package gameplay

import (
	"maps"
	"slices"
)

// CharacterSheet is one character of the roster.
//
// Label is the fixed slot identifier ("Character 1") and never changes
// through sanitization. Items holds only filled slots; values are trimmed
// and non-empty.
type CharacterSheet struct {
	Label    string
	Name     string
	Stuffing int
	Heart    int
	Buttons  int
	Die      Die
	Statuses []Status
	Items    map[ItemSlot]string
}

// Clone returns a deep copy of c.
func (c CharacterSheet) Clone() CharacterSheet {
	out := c
	out.Statuses = slices.Clone(c.Statuses)
	if out.Statuses == nil {
		out.Statuses = []Status{}
	}
	out.Items = maps.Clone(c.Items)
	if out.Items == nil {
		out.Items = map[ItemSlot]string{}
	}
	return out
}

// Counter returns the value of counter c.
func (c *CharacterSheet) Counter(counter Counter) int {
	switch counter {
	case Stuffing:
		return c.Stuffing
	case Heart:
		return c.Heart
	case Buttons:
		return c.Buttons
	}
	return 0
}

func (c *CharacterSheet) setCounter(counter Counter, value int) {
	switch counter {
	case Stuffing:
		c.Stuffing = value
	case Heart:
		c.Heart = value
	case Buttons:
		c.Buttons = value
	}
}

// HasStatus reports whether s is set.
func (c *CharacterSheet) HasStatus(s Status) bool {
	return slices.Contains(c.Statuses, s)
}

// export returns the JSON-shaped form of c.
func (c CharacterSheet) export() map[string]any {
	var die any
	if c.Die != NoDie {
		die = string(c.Die)
	}
	statuses := make([]any, 0, len(c.Statuses))
	for _, s := range c.Statuses {
		statuses = append(statuses, string(s))
	}
	items := make(map[string]any, len(c.Items))
	for _, slot := range ItemSlots {
		if text, ok := c.Items[slot]; ok {
			items[string(slot)] = text
		}
	}
	return map[string]any{
		"label":    c.Label,
		"name":     c.Name,
		"stuffing": c.Stuffing,
		"heart":    c.Heart,
		"buttons":  c.Buttons,
		"die":      die,
		"statuses": statuses,
		"items":    items,
	}
}

// DefaultRoster returns the two starting characters.
func DefaultRoster() []CharacterSheet {
	return []CharacterSheet{
		{Label: "Character 1", Name: "Lumpy", Statuses: []Status{}, Items: map[ItemSlot]string{}},
		{Label: "Character 2", Name: "Flops", Statuses: []Status{}, Items: map[ItemSlot]string{}},
	}
}
