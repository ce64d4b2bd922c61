package store

import "strings"

// Storage keys. The prefix keeps fablekeep records apart from anything else
// sharing the medium.
const (
	Prefix         = "fablekeep/"
	KeyGameplay    = "fablekeep/gameplay"
	KeySessions    = "fablekeep/sessions"
	TimelinePrefix = "fablekeep/timeline/"
	backupPrefix   = "fablekeep/backup-meta/"
)

// TimelineKey returns the progress key for a scene.
func TimelineKey(sceneID string) string {
	return TimelinePrefix + sceneID
}

// SceneIDFromKey extracts the scene id from a timeline key.
func SceneIDFromKey(key string) (string, bool) {
	if !strings.HasPrefix(key, TimelinePrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, TimelinePrefix), true
}

// BackupMetaKey returns the key holding the last known server timestamp of a
// backup slot.
func BackupMetaKey(role, sessionKey, slot string) string {
	return backupPrefix + role + "/" + sessionKey + "/" + slot
}
