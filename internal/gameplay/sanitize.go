package gameplay

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Outcome tags the result of validating external data.
type Outcome int

const (
	// Valid means every field was accepted as given.
	Valid Outcome = iota
	// Defaulted means some fields were replaced by fallback values.
	Defaulted
	// Rejected means the input could not be used at all.
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Defaulted:
		return "defaulted"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Validation describes how a value was sanitized. Fields lists the
// fields that fell back, in sheet order.
type Validation struct {
	Outcome Outcome
	Fields  []string
}

func (v *Validation) fallback(field string) {
	v.Outcome = Defaulted
	v.Fields = append(v.Fields, field)
}

// sheetFields is every sanitized field in sheet order.
var sheetFields = []string{"name", "stuffing", "heart", "buttons", "die", "statuses", "items"}

// Sanitize validates raw against the character schema.
//
// raw is any decoded JSON value. Each field is checked on its own; a field
// that is missing or invalid takes fallback's value. Numbers are rounded
// half up and clamped. Unknown statuses are dropped, duplicates collapse.
// The label always comes from fallback. Sanitize never panics and never
// returns an out-of-range counter.
func Sanitize(raw any, fallback CharacterSheet) (CharacterSheet, Validation) {
	out := fallback.Clone()
	var v Validation

	obj, ok := raw.(map[string]any)
	if !ok {
		for _, f := range sheetFields {
			v.fallback(f)
		}
		return out, v
	}

	if name, ok := obj["name"].(string); ok && IsCastName(name) {
		out.Name = name
	} else {
		v.fallback("name")
	}

	for _, counter := range Counters {
		lo, hi := counter.bounds()
		n, ok := clampNumber(obj[string(counter)], lo, hi)
		if !ok {
			v.fallback(string(counter))
			continue
		}
		out.setCounter(counter, n)
	}

	switch die := obj["die"].(type) {
	case nil:
		if _, present := obj["die"]; present {
			out.Die = NoDie
		} else {
			v.fallback("die")
		}
	case string:
		if Die(die).Valid() {
			out.Die = Die(die)
		} else {
			v.fallback("die")
		}
	default:
		v.fallback("die")
	}

	if list, ok := obj["statuses"].([]any); ok {
		statuses, clean := sanitizeStatuses(list)
		out.Statuses = statuses
		if !clean {
			v.fallback("statuses")
		}
	} else {
		v.fallback("statuses")
	}

	if items, ok := obj["items"].(map[string]any); ok {
		var clean bool
		out.Items, clean = sanitizeItems(items, fallback.Items)
		if !clean {
			v.fallback("items")
		}
	} else {
		v.fallback("items")
	}

	return out, v
}

// sanitizeStatuses keeps known statuses in first-seen order. clean is false
// when anything was dropped.
func sanitizeStatuses(list []any) ([]Status, bool) {
	out := make([]Status, 0, len(list))
	clean := true
	for _, raw := range list {
		s, ok := raw.(string)
		if !ok || !Status(s).Valid() {
			clean = false
			continue
		}
		if slices.Contains(out, Status(s)) {
			clean = false
			continue
		}
		out = append(out, Status(s))
	}
	return out, clean
}

// sanitizeItems reads known slots. A string is trimmed and an empty or null
// slot is cleared; any other type keeps the fallback slot.
func sanitizeItems(items map[string]any, fallback map[ItemSlot]string) (map[ItemSlot]string, bool) {
	out := make(map[ItemSlot]string, len(ItemSlots))
	clean := true
	for _, slot := range ItemSlots {
		switch val := items[string(slot)].(type) {
		case nil:
		case string:
			if text := strings.TrimSpace(val); text != "" {
				out[slot] = text
			}
		default:
			clean = false
			if prev, ok := fallback[slot]; ok {
				out[slot] = prev
			}
		}
	}
	for key := range items {
		if !ItemSlot(key).Valid() {
			clean = false
		}
	}
	return out, clean
}

// clampNumber rounds a numeric value half up and clamps it to [lo, hi].
// A negative hi means no upper bound. Numeric strings are accepted; any
// other type, or a non-finite value, reports false.
func clampNumber(raw any, lo, hi int) (int, bool) {
	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f + 0.5)
	if f < float64(lo) {
		return lo, true
	}
	if hi >= 0 && f > float64(hi) {
		return hi, true
	}
	if f >= float64(math.MaxInt) {
		return math.MaxInt, true
	}
	return int(f), true
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}
