package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/roach88/fablekeep/internal/canon"
)

const progressVersion = 1

// Progress is the persisted form of one scene's puzzle state. Conflicts are
// never stored; they are recomputed from Selections on load.
type Progress struct {
	Version    int            `json:"version"`
	Selections map[int]string `json:"selections"`
	Results    map[int]Result `json:"results"`
	Attempts   int            `json:"attempts"`
	UpdatedAt  int64          `json:"updatedAt"`
}

// Encode returns the record's canonical JSON bytes.
func (p *Progress) Encode() ([]byte, error) {
	selections := make(map[string]any, len(p.Selections))
	for index, text := range p.Selections {
		selections[strconv.Itoa(index)] = text
	}
	results := make(map[string]any, len(p.Results))
	for index, r := range p.Results {
		results[strconv.Itoa(index)] = string(r)
	}
	return canon.Marshal(map[string]any{
		"version":    json.Number(strconv.Itoa(p.Version)),
		"selections": selections,
		"results":    results,
		"attempts":   json.Number(strconv.Itoa(p.Attempts)),
		"updatedAt":  json.Number(strconv.FormatInt(p.UpdatedAt, 10)),
	})
}

// DecodeProgress parses a persisted record. Only a document that is not a
// JSON object is an error; every field is otherwise read leniently and
// anything malformed is dropped. Records written before versioning carry no
// version field and share the same layout.
func DecodeProgress(data []byte) (*Progress, error) {
	tree, err := canon.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode timeline progress: %w", err)
	}
	obj, ok := tree.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("decode timeline progress: expected object, got %T", tree)
	}

	p := &Progress{
		Version:    progressVersion,
		Selections: make(map[int]string),
		Results:    make(map[int]Result),
	}
	if v, ok := wholeNumber(obj["version"]); ok {
		p.Version = int(v)
	}
	if p.Version > progressVersion {
		return nil, fmt.Errorf("decode timeline progress: unsupported version %d", p.Version)
	}

	if m, ok := obj["selections"].(map[string]any); ok {
		for key, raw := range m {
			index, ok := parseIndex(key)
			if !ok {
				continue
			}
			if text, ok := raw.(string); ok && text != "" {
				p.Selections[index] = text
			}
		}
	}
	if m, ok := obj["results"].(map[string]any); ok {
		for key, raw := range m {
			index, ok := parseIndex(key)
			if !ok {
				continue
			}
			if s, ok := raw.(string); ok {
				if r := Result(s); r == Correct || r == Incorrect {
					p.Results[index] = r
				}
			}
		}
	}
	if v, ok := wholeNumber(obj["attempts"]); ok && v > 0 {
		p.Attempts = int(min(v, math.MaxInt32))
	}
	if v, ok := wholeNumber(obj["updatedAt"]); ok {
		p.UpdatedAt = v
	}
	return p, nil
}

// wholeNumber floors a finite JSON number.
func wholeNumber(raw any) (int64, bool) {
	n, ok := raw.(json.Number)
	if !ok {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Floor(f)
	if f >= math.MaxInt64 {
		return math.MaxInt64, true
	}
	if f <= math.MinInt64 {
		return math.MinInt64, true
	}
	return int64(f), true
}

// parseIndex accepts the decimal spelling of a non-negative position.
func parseIndex(key string) (int, bool) {
	index, err := strconv.Atoi(key)
	if err != nil || index < 0 || strconv.Itoa(index) != key {
		return 0, false
	}
	return index, true
}
