package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/scene"
)

// SceneSummary is one row of "scenes list".
type SceneSummary struct {
	ID         string `json:"id"`
	Events     int    `json:"events"`
	Blanks     int    `json:"blanks"`
	Vocabulary int    `json:"vocabulary"`
}

// NewScenesCommand creates the scenes command group.
func NewScenesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenes",
		Short: "Inspect and index scene files",
	}
	cmd.AddCommand(newScenesListCommand(rootOpts))
	cmd.AddCommand(newScenesIndexCommand(rootOpts))
	cmd.AddCommand(newScenesShowCommand(rootOpts))
	cmd.AddCommand(newScenesValidateCommand(rootOpts))
	return cmd
}

func newScenesListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List loaded scenes in reading order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := loadScenes(cmd, opts)
			if err != nil {
				return err
			}
			rows := make([]SceneSummary, 0, len(scenes.Scenes))
			for _, sc := range scenes.Scenes {
				rows = append(rows, SceneSummary{
					ID:         sc.ID,
					Events:     len(sc.Timeline.Events),
					Blanks:     len(sc.BlankIndices()),
					Vocabulary: len(sc.Narrative.Vocabulary),
				})
			}
			return newFormatter(cmd, opts).Render(rows, func(w io.Writer) {
				if len(rows) == 0 {
					fmt.Fprintln(w, "No scenes found.")
					return
				}
				for _, r := range rows {
					fmt.Fprintf(w, "%-8s %2d events, %2d blanks, %2d words\n", r.ID, r.Events, r.Blanks, r.Vocabulary)
				}
			})
		},
	}
}

func newScenesIndexCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index [dir]",
		Short: "Regenerate scene-index.json from the directory listing",
		Long: `Rewrite the scene manifest of a directory.

The manifest lists every *.json scene file in locale order. When it exists
and is non-empty, loaders read it instead of listing the directory.

Example:
  fablekeep scenes index ./scenes`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			} else {
				cfg, err := loadConfig(opts)
				if err != nil {
					return err
				}
				dir = cfg.ScenesDir
			}
			files, err := scene.WriteManifest(dir)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to write manifest", err)
			}
			return newFormatter(cmd, opts).Render(map[string]any{"dir": dir, "files": files}, func(w io.Writer) {
				fmt.Fprintf(w, "Indexed %d scene(s) in %s\n", len(files), dir)
			})
		},
	}
}

func newScenesShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <scene>",
		Short:         "Print a scene's narrative and timeline with blanks hidden",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes, err := loadScenes(cmd, opts)
			if err != nil {
				return err
			}
			sc := scenes.Get(args[0])
			if sc == nil {
				return WrapExitError(ExitCommandError, "scene "+args[0], app.ErrUnknownScene)
			}
			return newFormatter(cmd, opts).Render(sceneView(sc), func(w io.Writer) {
				for _, p := range sc.Narrative.Paragraphs {
					fmt.Fprintln(w, p)
					fmt.Fprintln(w)
				}
				if len(sc.Narrative.Vocabulary) > 0 {
					fmt.Fprintln(w, "Vocabulary:")
					for _, v := range sc.Narrative.Vocabulary {
						fmt.Fprintf(w, "  %s: %s\n", v.Word, v.Definition)
					}
					fmt.Fprintln(w)
				}
				fmt.Fprintln(w, "Timeline:")
				for i, ev := range sc.Timeline.Events {
					fmt.Fprintf(w, "  %2d. %s\n", i, eventText(ev))
				}
			})
		},
	}
}

// sceneView is the JSON form of "scenes show". Blank answers are omitted.
func sceneView(sc *scene.Scene) map[string]any {
	events := make([]any, len(sc.Timeline.Events))
	for i, ev := range sc.Timeline.Events {
		row := map[string]any{"index": i, "type": string(ev.Type)}
		if ev.Type == scene.Anchor {
			row["text"] = ev.Text
		}
		events[i] = row
	}
	return map[string]any{
		"id":         sc.ID,
		"narrative":  sc.Narrative,
		"events":     events,
		"vocabulary": len(scene.VocabularyIndex(sc)),
	}
}

func eventText(ev scene.Event) string {
	if ev.Type == scene.Blank {
		return strings.Repeat("_", 12)
	}
	return ev.Text
}

func loadScenes(cmd *cobra.Command, opts *RootOptions) (*scene.Collection, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	scenes, err := app.LoadScenes(cfg.ScenesDir, newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scenes", err)
	}
	return scenes, nil
}
