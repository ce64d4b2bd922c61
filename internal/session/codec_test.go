package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fablekeep/internal/canon"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/testutil"
)

func TestFromExport_Sanitizes(t *testing.T) {
	raw, err := canon.Decode([]byte(`{
		"id": " s-1 ",
		"name": "",
		"createdAt": "2024-09-01T09:00:00.000Z",
		"updatedAt": "yesterday",
		"gameplay": {"characters": [{"name": "Piggle", "stuffing": 9, "items": ["cap"]}]},
		"sceneProgress": {"1-1": "started", "1-2": "started", "1-3": "paused", "1-4": "finished"},
		"sleepCards": [{"id": 4, "status": "snoring"}, {"id": "4", "status": "waking"}, {"status": "waking"}],
		"lostCards": [{"id": "9", "name": " Kite "}, "junk"]
	}`))
	require.NoError(t, err)

	now := testutil.Epoch.Add(time.Hour)
	s, err := FromExport(raw, now)
	require.NoError(t, err)

	assert.Equal(t, "s-1", s.ID)
	assert.Equal(t, defaultName, s.Name)
	assert.Equal(t, testutil.Epoch, s.CreatedAt)
	assert.Equal(t, now, s.UpdatedAt)
	assert.Equal(t, "Piggle", s.Gameplay.Characters[0].Name)
	assert.Equal(t, gameplay.MaxStuffing, s.Gameplay.Characters[0].Stuffing)
	assert.Equal(t, "cap", s.Gameplay.Characters[0].Items[gameplay.SlotHead])
	assert.Equal(t, map[string]SceneStatus{"1-1": Finished, "1-2": Started, "1-4": Finished}, s.SceneProgress)
	assert.Equal(t, []SleepCard{{ID: "4", Status: Sleeping}}, s.SleepCards)
	assert.Equal(t, []LostCard{{ID: "9", Name: "Kite"}}, s.LostCards)
}

func TestFromExport_RequiresID(t *testing.T) {
	for _, in := range []string{`{}`, `{"id":""}`, `{"id":5}`, `[]`} {
		raw, err := canon.Decode([]byte(in))
		require.NoError(t, err)
		_, err = FromExport(raw, testutil.Epoch)
		assert.Error(t, err, in)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	s := &Session{
		ID:            "s-1",
		Name:          "Period 3",
		CreatedAt:     testutil.Epoch,
		UpdatedAt:     testutil.Epoch.Add(1500 * time.Millisecond),
		Gameplay:      gameplay.NewSnapshot(),
		SceneProgress: map[string]SceneStatus{"1-1": Finished, "1-2": Started},
		SleepCards:    []SleepCard{{ID: "3", Status: Restless}},
		LostCards:     []LostCard{{ID: "8", Name: "Thimble"}},
	}
	data, err := Encode([]*Session{s}, "s-1")
	require.NoError(t, err)

	sessions, active, err := Decode(data, time.Time{}, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s-1", active)
	assert.Equal(t, s, sessions[0])
}

func TestDecode_SkipsBadAndDuplicateSessions(t *testing.T) {
	data := []byte(`{"version":1,"activeSessionId":"gone","sessions":[{"id":"a"},{"name":"no id"},{"id":"a","name":"dup"},{"id":"b"}]}`)
	sessions, active, err := Decode(data, testutil.Epoch, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
	assert.Equal(t, defaultName, sessions[0].Name)
	assert.Equal(t, "b", sessions[1].ID)
	assert.Empty(t, active)
}

func TestDecode_AcceptsBareList(t *testing.T) {
	sessions, _, err := Decode([]byte(`[{"id":"a"}]`), testutil.Epoch, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestDecode_RejectsNewerVersion(t *testing.T) {
	_, _, err := Decode([]byte(`{"version":2,"sessions":[]}`), testutil.Epoch, nil)
	assert.Error(t, err)
}
