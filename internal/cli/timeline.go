package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/timeline"
)

// TimelineView is the printed state of a scene's timeline puzzle.
type TimelineView struct {
	Scene      string         `json:"scene"`
	Events     []TimelineSlot `json:"events"`
	Options    []string       `json:"options"`
	Correct    int            `json:"correct"`
	Total      int            `json:"total"`
	Attempts   int            `json:"attempts"`
	Complete   bool           `json:"complete"`
	Changed    bool           `json:"changed"`
	Conflicted []int          `json:"conflicts"`
}

// TimelineSlot is one event of a TimelineView. Anchors carry their text;
// blanks carry the player's selection and result.
type TimelineSlot struct {
	Index     int    `json:"index"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Selection string `json:"selection,omitempty"`
	Conflict  bool   `json:"conflict,omitempty"`
	Result    string `json:"result,omitempty"`
}

// NewTimelineCommand creates the timeline command group.
func NewTimelineCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Play a scene's timeline puzzle",
		Long: `Fill the blanks of a scene's timeline from its option pool.

Selections are saved after every change and restored the next time the
scene is opened.

Examples:
  fablekeep timeline show 1-1
  fablekeep timeline select 1-1 2 "the river rises"
  fablekeep timeline check 1-1`,
	}
	cmd.AddCommand(newTimelineShowCommand(rootOpts))
	cmd.AddCommand(newTimelineSelectCommand(rootOpts))
	cmd.AddCommand(newTimelineClearCommand(rootOpts))
	cmd.AddCommand(newTimelineCheckCommand(rootOpts))
	return cmd
}

func newTimelineShowCommand(opts *RootOptions) *cobra.Command {
	return timelineCommand(opts, "show <scene>", "Show the puzzle state", cobra.ExactArgs(1),
		func(ctx context.Context, e *timeline.Engine, args []string) (bool, error) {
			return false, nil
		})
}

func newTimelineSelectCommand(opts *RootOptions) *cobra.Command {
	return timelineCommand(opts, "select <scene> <index> <text>", "Place an option into a blank", cobra.ExactArgs(3),
		func(ctx context.Context, e *timeline.Engine, args []string) (bool, error) {
			index, err := parseIndex(args[1])
			if err != nil {
				return false, err
			}
			return e.Select(ctx, index, args[2]), nil
		})
}

func newTimelineClearCommand(opts *RootOptions) *cobra.Command {
	return timelineCommand(opts, "clear <scene> <index>", "Empty a blank", cobra.ExactArgs(2),
		func(ctx context.Context, e *timeline.Engine, args []string) (bool, error) {
			index, err := parseIndex(args[1])
			if err != nil {
				return false, err
			}
			return e.Clear(ctx, index), nil
		})
}

func newTimelineCheckCommand(opts *RootOptions) *cobra.Command {
	return timelineCommand(opts, "check <scene>", "Evaluate the filled blanks", cobra.ExactArgs(1),
		func(ctx context.Context, e *timeline.Engine, args []string) (bool, error) {
			return e.Evaluate(ctx), nil
		})
}

// timelineCommand builds a subcommand that opens the scene named by the
// first argument, runs act and prints the resulting state.
func timelineCommand(opts *RootOptions, use, short string, argsFn cobra.PositionalArgs,
	act func(ctx context.Context, e *timeline.Engine, args []string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          argsFn,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				e, err := a.TimelineFor(ctx, args[0])
				if err != nil {
					return err
				}
				changed, err := act(ctx, e, args)
				if err != nil {
					return err
				}
				view := timelineView(e)
				view.Changed = changed
				return out.Render(view, func(w io.Writer) { writeTimeline(w, view) })
			})
		},
	}
}

func parseIndex(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("index %q is not a number", s))
	}
	return index, nil
}

func timelineView(e *timeline.Engine) TimelineView {
	st := e.State()
	sc := e.Scene()
	correct, total := e.Score()
	view := TimelineView{
		Scene:      st.SceneID,
		Options:    st.OptionPool,
		Correct:    correct,
		Total:      total,
		Attempts:   st.Attempts,
		Complete:   e.Complete(),
		Conflicted: st.Conflicts,
	}
	if view.Conflicted == nil {
		view.Conflicted = []int{}
	}
	for i, ev := range sc.Timeline.Events {
		slot := TimelineSlot{Index: i, Type: string(ev.Type)}
		if ev.Type == scene.Anchor {
			slot.Text = ev.Text
		} else {
			slot.Selection = st.Selections[i]
			slot.Conflict = e.IsConflict(i)
			slot.Result = string(st.Results[i])
		}
		view.Events = append(view.Events, slot)
	}
	return view
}

func writeTimeline(w io.Writer, v TimelineView) {
	fmt.Fprintf(w, "Scene %s\n", v.Scene)
	for _, slot := range v.Events {
		if slot.Type == string(scene.Anchor) {
			fmt.Fprintf(w, "  %2d.   %s\n", slot.Index, slot.Text)
			continue
		}
		text := slot.Selection
		if text == "" {
			text = strings.Repeat("_", 12)
		}
		mark := " "
		switch {
		case slot.Conflict:
			mark = "!"
		case slot.Result == string(timeline.Correct):
			mark = "✓"
		case slot.Result == string(timeline.Incorrect):
			mark = "✗"
		}
		fmt.Fprintf(w, "  %2d. %s [%s]\n", slot.Index, mark, text)
	}
	fmt.Fprintf(w, "Options: %s\n", strings.Join(v.Options, " | "))
	if v.Attempts > 0 {
		fmt.Fprintf(w, "Score: %d/%d after %d attempt(s)\n", v.Correct, v.Total, v.Attempts)
	}
	if v.Complete {
		fmt.Fprintln(w, "Timeline complete!")
	}
}
