package gameplay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fablekeep/internal/canon"
)

func TestApply_RejectsMissingCharacters(t *testing.T) {
	for _, in := range []string{`null`, `[]`, `{}`, `{"characters":[]}`, `{"characters":{"0":{}}}`} {
		t.Run(in, func(t *testing.T) {
			s := NewSnapshot()
			before := s.Clone()
			_, err := s.Apply(decode(t, in))
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, before, s)
		})
	}
}

func TestApply_PositionalSanitize(t *testing.T) {
	s := NewSnapshot()
	report, err := s.Apply(decode(t, `{"activeCharacterIndex":1,"characters":[{"name":"Lionel","stuffing":2,"heart":1,"buttons":4,"die":null,"statuses":[],"items":{}}]}`))
	require.NoError(t, err)

	assert.Equal(t, "Lionel", s.Characters[0].Name)
	assert.Equal(t, 2, s.Characters[0].Stuffing)
	// Position the candidate lacks keeps its sheet
	assert.Equal(t, DefaultRoster()[1], s.Characters[1])
	assert.Equal(t, 1, s.ActiveIndex)
	assert.Equal(t, Valid, report.Outcome())
}

func TestApply_ExtraCandidatesIgnored(t *testing.T) {
	s := NewSnapshot()
	_, err := s.Apply(decode(t, `{"characters":[{},{},{"name":"Piggle"}]}`))
	require.NoError(t, err)
	assert.Len(t, s.Characters, 2)
}

func TestApply_ClampsActiveIndex(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{`{"activeCharacterIndex":9,"characters":[{}]}`, 1},
		{`{"activeCharacterIndex":-4,"characters":[{}]}`, 0},
		{`{"activeCharacterIndex":0.6,"characters":[{}]}`, 1},
		{`{"activeCharacterIndex":"x","characters":[{}]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s := NewSnapshot()
			_, err := s.Apply(decode(t, tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.ActiveIndex)
		})
	}
}

func TestApply_ExportRoundTrip(t *testing.T) {
	s := NewSnapshot()
	s.SelectCharacter(1)
	s.SetName("Theadora")
	s.Adjust(Heart, 4)
	s.SetDie(DiePurple)
	s.ToggleStatus(Scared)
	s.ToggleStatus(SkreelasMark)
	s.SetItem(SlotPaws, "  rubber boots ")

	exported := s.Export()
	data, err := json.Marshal(exported)
	require.NoError(t, err)

	restored := NewSnapshot()
	report, err := restored.Apply(decode(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, Valid, report.Outcome())
	assert.Equal(t, s, restored)

	equal, err := canon.Equal(exported, restored.Export())
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestEncodeDecode(t *testing.T) {
	s := NewSnapshot()
	s.Adjust(Stuffing, 2)
	data, err := Encode(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":1`)

	restored := NewSnapshot()
	_, err = restored.Load(data)
	require.NoError(t, err)
	assert.Equal(t, s, restored)
}

func TestDecode_MigratesItemLists(t *testing.T) {
	legacy := `{"activeCharacterIndex":0,"characters":[{"label":"Character 1","name":"Lumpy","stuffing":1,"heart":0,"buttons":0,"die":null,"statuses":[],
		"items":["hat"," ","cape","glove","whistle","map"],"activeItemIndex":2}]}`
	doc, err := Decode([]byte(legacy))
	require.NoError(t, err)

	characters := doc["characters"].([]any)
	c := characters[0].(map[string]any)
	assert.Equal(t, map[string]any{
		"head":      "hat",
		"body":      "cape",
		"paws":      "glove",
		"accessory": "whistle, map",
	}, c["items"])
	assert.NotContains(t, c, "activeItemIndex")

	s := NewSnapshot()
	_, err = s.Apply(doc)
	require.NoError(t, err)
	assert.Equal(t, "whistle, map", s.Characters[0].Items[SlotAccessory])
}

func TestDecode_Errors(t *testing.T) {
	for _, in := range []string{`[]`, `{"version":2,"characters":[{}]}`, `{"version":"x"}`, `not json`} {
		_, err := Decode([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestUnmarshalJSON_Sanitizes(t *testing.T) {
	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"characters":[{"stuffing":99}]}`), &s))
	assert.Equal(t, MaxStuffing, s.Characters[0].Stuffing)

	err := json.Unmarshal([]byte(`{"characters":[]}`), &s)
	assert.True(t, IsValidationError(err))
}

func TestEdits(t *testing.T) {
	s := NewSnapshot()

	assert.False(t, s.SelectCharacter(2))
	assert.True(t, s.SelectCharacter(1))
	assert.Equal(t, "Flops", s.Active().Name)

	assert.False(t, s.SetName("Skreela"))
	assert.True(t, s.SetName("Stitch"))

	assert.True(t, s.Adjust(Stuffing, 9))
	assert.Equal(t, MaxStuffing, s.Active().Stuffing)
	assert.True(t, s.Adjust(Stuffing, -20))
	assert.Equal(t, 0, s.Active().Stuffing)
	assert.False(t, s.Adjust(Counter("pockets"), 1))

	assert.True(t, s.SetDie(DieGreen))
	assert.Equal(t, DieGreen, s.Active().Die)
	assert.True(t, s.SetDie(DieGreen))
	assert.Equal(t, NoDie, s.Active().Die)
	assert.False(t, s.SetDie(Die("red")))

	assert.True(t, s.ToggleStatus(Worried))
	assert.True(t, s.Active().HasStatus(Worried))
	assert.True(t, s.ToggleStatus(Worried))
	assert.False(t, s.Active().HasStatus(Worried))

	assert.True(t, s.SetItem(SlotHead, " crown "))
	assert.Equal(t, "crown", s.Active().Items[SlotHead])
	assert.True(t, s.ClearItem(SlotHead))
	assert.NotContains(t, s.Active().Items, SlotHead)
	assert.False(t, s.SetItem(ItemSlot("tail"), "bow"))

	// The other character is untouched
	assert.Equal(t, DefaultRoster()[0], s.Characters[0])
}
