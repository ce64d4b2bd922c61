package gameplay

import (
	"slices"
	"strings"
)

// Snapshot is the active character pointer plus the ordered roster. It is
// the unit of backup and restore for the solo role.
type Snapshot struct {
	ActiveIndex int
	Characters  []CharacterSheet
}

// NewSnapshot returns the default two-character roster.
func NewSnapshot() *Snapshot {
	return &Snapshot{Characters: DefaultRoster()}
}

// Clone returns a deep copy of s.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{ActiveIndex: s.ActiveIndex, Characters: make([]CharacterSheet, len(s.Characters))}
	for i, c := range s.Characters {
		out.Characters[i] = c.Clone()
	}
	return out
}

// Report lists the validation of each roster position after Apply.
type Report struct {
	Characters []Validation
}

// Outcome is the worst outcome across the roster.
func (r Report) Outcome() Outcome {
	worst := Valid
	for _, v := range r.Characters {
		worst = max(worst, v.Outcome)
	}
	return worst
}

// Apply replaces the roster with a sanitized candidate.
//
// The candidate must be an object with a non-empty "characters" list,
// otherwise Apply returns a *ValidationError and s is unchanged. Each
// existing character is sanitized against the candidate entry at the same
// position, using the current sheet as fallback; positions the candidate
// lacks keep their current sheet. The roster length never changes.
func (s *Snapshot) Apply(candidate any) (Report, error) {
	obj, ok := candidate.(map[string]any)
	if !ok {
		return Report{}, &ValidationError{Reason: "expected an object"}
	}
	list, ok := obj["characters"].([]any)
	if !ok || len(list) == 0 {
		return Report{}, &ValidationError{Reason: "character list is missing or empty"}
	}

	report := Report{Characters: make([]Validation, len(s.Characters))}
	next := make([]CharacterSheet, len(s.Characters))
	for i, current := range s.Characters {
		if i >= len(list) {
			next[i] = current.Clone()
			continue
		}
		next[i], report.Characters[i] = Sanitize(list[i], current)
	}
	s.Characters = next

	if index, ok := clampNumber(obj["activeCharacterIndex"], 0, len(s.Characters)-1); ok {
		s.ActiveIndex = index
	}
	s.ActiveIndex = clampIndex(s.ActiveIndex, len(s.Characters))
	return report, nil
}

func clampIndex(index, n int) int {
	if n == 0 || index < 0 {
		return 0
	}
	return min(index, n-1)
}

// Export returns the JSON-shaped form of s: generic maps, slices, strings
// and ints only, safe to hand to canon or encoding/json.
func (s *Snapshot) Export() map[string]any {
	characters := make([]any, len(s.Characters))
	for i, c := range s.Characters {
		characters[i] = c.export()
	}
	return map[string]any{
		"activeCharacterIndex": s.ActiveIndex,
		"characters":           characters,
	}
}

// Active returns the active character, or nil for an empty roster.
func (s *Snapshot) Active() *CharacterSheet {
	if len(s.Characters) == 0 {
		return nil
	}
	return &s.Characters[clampIndex(s.ActiveIndex, len(s.Characters))]
}

// SelectCharacter makes index the active character.
func (s *Snapshot) SelectCharacter(index int) bool {
	if index < 0 || index >= len(s.Characters) {
		return false
	}
	s.ActiveIndex = index
	return true
}

// SetName renames the active character to a cast member.
func (s *Snapshot) SetName(name string) bool {
	c := s.Active()
	if c == nil || !IsCastName(name) {
		return false
	}
	c.Name = name
	return true
}

// Adjust adds delta to a counter of the active character, clamped to the
// counter's range.
func (s *Snapshot) Adjust(counter Counter, delta int) bool {
	c := s.Active()
	if c == nil || !counter.Valid() {
		return false
	}
	lo, hi := counter.bounds()
	next := float64(c.Counter(counter)) + float64(delta)
	value, _ := clampNumber(next, lo, hi)
	c.setCounter(counter, value)
	return true
}

// SetDie assigns d to the active character; assigning the current die
// removes it.
func (s *Snapshot) SetDie(d Die) bool {
	c := s.Active()
	if c == nil || !d.Valid() {
		return false
	}
	if c.Die == d {
		c.Die = NoDie
	} else {
		c.Die = d
	}
	return true
}

// ToggleStatus adds or removes status on the active character.
func (s *Snapshot) ToggleStatus(status Status) bool {
	c := s.Active()
	if c == nil || !status.Valid() {
		return false
	}
	if i := slices.Index(c.Statuses, status); i >= 0 {
		c.Statuses = slices.Delete(c.Statuses, i, i+1)
	} else {
		c.Statuses = append(c.Statuses, status)
	}
	return true
}

// SetItem puts text into slot of the active character. Blank text clears
// the slot.
func (s *Snapshot) SetItem(slot ItemSlot, text string) bool {
	c := s.Active()
	if c == nil || !slot.Valid() {
		return false
	}
	if c.Items == nil {
		c.Items = map[ItemSlot]string{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		delete(c.Items, slot)
		return true
	}
	c.Items[slot] = text
	return true
}

// ClearItem empties slot of the active character.
func (s *Snapshot) ClearItem(slot ItemSlot) bool {
	return s.SetItem(slot, "")
}
