package harness

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/session"
)

// actionFunc performs one scripted action. It returns whether state
// changed and a result document for the trace.
type actionFunc func(ctx context.Context, h *Harness, args map[string]any) (changed bool, result map[string]any, err error)

var actions = map[string]actionFunc{
	"open_scene": openScene,
	"select":     selectAnswer,
	"clear":      clearAnswer,
	"evaluate":   evaluate,

	"select_character": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		index, err := intArg(args, "index")
		if err != nil {
			return false, err
		}
		return s.SelectCharacter(index), nil
	}),
	"set_name": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		name, err := stringArg(args, "name")
		if err != nil {
			return false, err
		}
		return s.SetName(name), nil
	}),
	"adjust": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		counter, err := stringArg(args, "counter")
		if err != nil {
			return false, err
		}
		delta, err := intArg(args, "delta")
		if err != nil {
			return false, err
		}
		return s.Adjust(gameplay.Counter(counter), delta), nil
	}),
	"set_die": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		die, err := stringArg(args, "die")
		if err != nil {
			return false, err
		}
		return s.SetDie(gameplay.Die(die)), nil
	}),
	"toggle_status": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		status, err := stringArg(args, "status")
		if err != nil {
			return false, err
		}
		return s.ToggleStatus(gameplay.Status(status)), nil
	}),
	"set_item": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		slot, err := stringArg(args, "slot")
		if err != nil {
			return false, err
		}
		text, err := stringArg(args, "text")
		if err != nil {
			return false, err
		}
		return s.SetItem(gameplay.ItemSlot(slot), text), nil
	}),
	"clear_item": editGameplay(func(s *gameplay.Snapshot, args map[string]any) (bool, error) {
		slot, err := stringArg(args, "slot")
		if err != nil {
			return false, err
		}
		return s.ClearItem(gameplay.ItemSlot(slot)), nil
	}),

	"create_session":   createSession,
	"select_session":   selectSession,
	"rename_session":   renameSession,
	"set_status":       setSceneStatus,
	"add_sleep_card":   addSleepCard,
	"set_sleep_status": setSleepStatus,
	"add_lost_card":    addLostCard,
	"resume":           resume,

	"advance_clock":  advanceClock,
	"backup_push":    backupPush,
	"backup_flush":   backupFlush,
	"backup_load":    backupLoad,
	"backup_resolve": backupResolve,
	"backup_cancel":  backupCancel,
}

func knownAction(name string) bool {
	_, ok := actions[name]
	return ok
}

// ActionNames returns the supported action names, sorted.
func ActionNames() []string {
	return slices.Sorted(maps.Keys(actions))
}

func openScene(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := stringArg(args, "scene")
	if err != nil {
		return false, nil, err
	}
	engine, err := h.app.TimelineFor(ctx, id)
	if err != nil {
		return false, nil, err
	}
	st := engine.State()
	return true, map[string]any{
		"scene":      id,
		"blanks":     len(engine.Scene().BlankIndices()),
		"options":    len(st.OptionPool),
		"selections": indexKeyed(st.Selections),
	}, nil
}

func selectAnswer(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	index, err := intArg(args, "index")
	if err != nil {
		return false, nil, err
	}
	text, err := stringArg(args, "text")
	if err != nil {
		return false, nil, err
	}
	engine := h.app.Timeline()
	changed := engine.Select(ctx, index, text)
	return changed, map[string]any{"conflicts": conflictList(engine.State().Conflicts)}, nil
}

func clearAnswer(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	index, err := intArg(args, "index")
	if err != nil {
		return false, nil, err
	}
	engine := h.app.Timeline()
	changed := engine.Clear(ctx, index)
	return changed, map[string]any{"conflicts": conflictList(engine.State().Conflicts)}, nil
}

func evaluate(ctx context.Context, h *Harness, _ map[string]any) (bool, map[string]any, error) {
	engine := h.app.Timeline()
	if !engine.Evaluate(ctx) {
		return false, nil, nil
	}
	st := engine.State()
	correct, total := engine.Score()
	results := make(map[string]any, len(st.Results))
	for index, r := range st.Results {
		results[strconv.Itoa(index)] = string(r)
	}
	return true, map[string]any{
		"correct":  correct,
		"total":    total,
		"attempts": st.Attempts,
		"complete": engine.Complete(),
		"results":  results,
	}, nil
}

// editGameplay adapts a snapshot edit into an action whose result is the
// active character.
func editGameplay(edit func(*gameplay.Snapshot, map[string]any) (bool, error)) actionFunc {
	return func(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
		var editErr error
		changed, err := h.app.EditGameplay(ctx, func(s *gameplay.Snapshot) bool {
			ok, err := edit(s, args)
			if err != nil {
				editErr = err
				return false
			}
			return ok
		})
		if editErr != nil {
			return false, nil, editErr
		}
		if err != nil {
			return false, nil, err
		}
		snap, err := h.app.Gameplay()
		if err != nil {
			return false, nil, err
		}
		return changed, activeCharacter(snap), nil
	}
}

func activeCharacter(s *gameplay.Snapshot) map[string]any {
	characters, _ := s.Export()["characters"].([]any)
	if s.ActiveIndex < 0 || s.ActiveIndex >= len(characters) {
		return nil
	}
	c, _ := characters[s.ActiveIndex].(map[string]any)
	return c
}

func createSession(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	name, _ := args["name"].(string)
	s := h.app.CreateSession(ctx, name)
	if err := h.app.Sessions().Select(ctx, s.ID); err != nil {
		return false, nil, err
	}
	return true, map[string]any{"id": s.ID, "name": s.Name}, nil
}

func selectSession(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := stringArg(args, "id")
	if err != nil {
		return false, nil, err
	}
	if err := h.app.Sessions().Select(ctx, id); err != nil {
		return false, nil, err
	}
	return true, map[string]any{"id": id}, nil
}

func renameSession(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := h.activeSession()
	if err != nil {
		return false, nil, err
	}
	name, _ := args["name"].(string)
	err = h.app.UpdateSession(ctx, id, func(ctx context.Context, r *session.Registry) error {
		return r.Rename(ctx, id, name)
	})
	if err != nil {
		return false, nil, err
	}
	s, _ := h.app.Sessions().Get(id)
	return true, map[string]any{"name": s.Name}, nil
}

func setSceneStatus(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := h.activeSession()
	if err != nil {
		return false, nil, err
	}
	sceneID, err := stringArg(args, "scene")
	if err != nil {
		return false, nil, err
	}
	status, _ := args["status"].(string)
	err = h.app.UpdateSession(ctx, id, func(ctx context.Context, r *session.Registry) error {
		return r.SetSceneStatus(ctx, id, sceneID, session.SceneStatus(status))
	})
	if err != nil {
		return false, nil, err
	}
	s, _ := h.app.Sessions().Get(id)
	progress := make(map[string]any, len(s.SceneProgress))
	for k, v := range s.SceneProgress {
		progress[k] = string(v)
	}
	return true, map[string]any{"progress": progress}, nil
}

func addSleepCard(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := h.activeSession()
	if err != nil {
		return false, nil, err
	}
	card, err := stringArg(args, "card")
	if err != nil {
		return false, nil, err
	}
	err = h.app.UpdateSession(ctx, id, func(ctx context.Context, r *session.Registry) error {
		return r.AddSleepCard(ctx, id, card)
	})
	if err != nil {
		return false, nil, err
	}
	s, _ := h.app.Sessions().Get(id)
	return true, map[string]any{"cards": len(s.SleepCards)}, nil
}

func setSleepStatus(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := h.activeSession()
	if err != nil {
		return false, nil, err
	}
	card, err := stringArg(args, "card")
	if err != nil {
		return false, nil, err
	}
	status, err := stringArg(args, "status")
	if err != nil {
		return false, nil, err
	}
	err = h.app.UpdateSession(ctx, id, func(ctx context.Context, r *session.Registry) error {
		return r.SetSleepCardStatus(ctx, id, card, session.SleepStatus(status))
	})
	if err != nil {
		return false, nil, err
	}
	return true, map[string]any{"card": card, "status": status}, nil
}

func addLostCard(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	id, err := h.activeSession()
	if err != nil {
		return false, nil, err
	}
	card, err := stringArg(args, "card")
	if err != nil {
		return false, nil, err
	}
	name, _ := args["name"].(string)
	err = h.app.UpdateSession(ctx, id, func(ctx context.Context, r *session.Registry) error {
		return r.AddLostCard(ctx, id, card, name)
	})
	if err != nil {
		return false, nil, err
	}
	s, _ := h.app.Sessions().Get(id)
	return true, map[string]any{"cards": len(s.LostCards)}, nil
}

func resume(_ context.Context, h *Harness, _ map[string]any) (bool, map[string]any, error) {
	id, err := h.activeSession()
	if err != nil {
		return false, nil, err
	}
	point, err := h.app.ResumePoint(id)
	if err != nil {
		return false, nil, err
	}
	return false, map[string]any{"scene": point}, nil
}

func advanceClock(_ context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	seconds, err := intArg(args, "seconds")
	if err != nil {
		return false, nil, err
	}
	h.clock.Advance(time.Duration(seconds) * time.Second)
	// Autosaves that came due push on their own goroutines.
	h.app.WaitAutosave()
	return true, nil, nil
}

func backupPush(ctx context.Context, h *Harness, _ map[string]any) (bool, map[string]any, error) {
	f, err := h.app.PushBackup(ctx)
	if err != nil {
		return false, nil, err
	}
	return true, map[string]any{"file": f.ID}, nil
}

func backupFlush(ctx context.Context, h *Harness, _ map[string]any) (bool, map[string]any, error) {
	if err := h.app.FlushAutosave(ctx); err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

func backupLoad(ctx context.Context, h *Harness, _ map[string]any) (bool, map[string]any, error) {
	d, err := h.app.BeginLoad(ctx)
	if err != nil {
		return false, nil, err
	}
	result := map[string]any{"conflict": d.Conflict()}
	if d.Conflict() {
		diffs := make([]any, len(d.Differences))
		for i, p := range d.Differences {
			diffs[i] = p
		}
		result["differences"] = diffs
		return false, result, nil
	}
	rec, _ := d.Resolved()
	result["slot"] = string(rec.Slot)
	return true, result, nil
}

func backupResolve(ctx context.Context, h *Harness, args map[string]any) (bool, map[string]any, error) {
	slot, err := stringArg(args, "slot")
	if err != nil {
		return false, nil, err
	}
	if err := h.app.ResolveLoad(ctx, backup.Slot(slot)); err != nil {
		return false, nil, err
	}
	return true, map[string]any{"slot": slot}, nil
}

func backupCancel(_ context.Context, h *Harness, _ map[string]any) (bool, map[string]any, error) {
	return h.app.CancelLoad(), nil, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key].(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string", key)
	}
	return v, nil
}

func intArg(args map[string]any, key string) (int, error) {
	switch v := args[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("argument %q must be an integer", key)
}

// indexKeyed converts an index map into a document with decimal keys.
func indexKeyed(m map[int]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return out
}

func conflictList(indices []int) []any {
	out := make([]any, len(indices))
	for i, v := range indices {
		out[i] = v
	}
	return out
}
