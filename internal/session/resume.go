package session

// DetermineResumePoint picks the scene a session should reopen at.
//
// In scene order: the started scene wins (the last one seen, should the
// invariant ever be broken); otherwise the scene after the last finished
// one, or the last scene when everything up to the end is finished;
// otherwise the first scene. Returns "" for an empty scene list. Progress
// for scenes not in sceneIDs is ignored.
func DetermineResumePoint(progress map[string]SceneStatus, sceneIDs []string) string {
	if len(sceneIDs) == 0 {
		return ""
	}
	started, lastFinished := -1, -1
	for i, id := range sceneIDs {
		switch progress[id] {
		case Started:
			started = i
		case Finished:
			lastFinished = i
		}
	}
	switch {
	case started >= 0:
		return sceneIDs[started]
	case lastFinished >= 0:
		return sceneIDs[min(lastFinished+1, len(sceneIDs)-1)]
	default:
		return sceneIDs[0]
	}
}
