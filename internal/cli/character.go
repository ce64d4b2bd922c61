package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/gameplay"
)

// CharacterView is the printed form of the roster after a command.
type CharacterView struct {
	Changed  bool           `json:"changed"`
	Gameplay map[string]any `json:"gameplay"`
}

// NewCharacterCommand creates the character command group. Edits apply to
// the active character of the solo roster, or of the active session for
// teachers.
func NewCharacterCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "character",
		Aliases: []string{"char"},
		Short:   "Show and edit character sheets",
	}

	cmd.AddCommand(characterCommand(rootOpts, "show", "Show the roster", cobra.NoArgs,
		func(s *gameplay.Snapshot, args []string) (bool, error) { return false, nil }))

	cmd.AddCommand(characterCommand(rootOpts, "select <index>", "Make a roster position active", cobra.ExactArgs(1),
		func(s *gameplay.Snapshot, args []string) (bool, error) {
			index, err := parseIndex(args[0])
			if err != nil {
				return false, err
			}
			return s.SelectCharacter(index), nil
		}))

	cmd.AddCommand(characterCommand(rootOpts, "name <name>", "Rename the active character to a cast member", cobra.ExactArgs(1),
		func(s *gameplay.Snapshot, args []string) (bool, error) {
			if !gameplay.IsCastName(args[0]) {
				return false, NewExitError(ExitCommandError, fmt.Sprintf("name %q: must be one of %v", args[0], gameplay.Cast))
			}
			return s.SetName(args[0]), nil
		}))

	cmd.AddCommand(characterCommand(rootOpts, "adjust <stuffing|heart|buttons> <delta>", "Add to a counter (put -- before a negative delta)", cobra.ExactArgs(2),
		func(s *gameplay.Snapshot, args []string) (bool, error) {
			counter := gameplay.Counter(args[0])
			if !counter.Valid() {
				return false, NewExitError(ExitCommandError, fmt.Sprintf("counter %q: must be one of %v", args[0], gameplay.Counters))
			}
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return false, NewExitError(ExitCommandError, fmt.Sprintf("delta %q is not a number", args[1]))
			}
			return s.Adjust(counter, delta), nil
		}))

	cmd.AddCommand(characterCommand(rootOpts, "die <color>", "Assign a die; repeating the color removes it", cobra.ExactArgs(1),
		func(s *gameplay.Snapshot, args []string) (bool, error) {
			die := gameplay.Die(args[0])
			if !die.Valid() {
				return false, NewExitError(ExitCommandError, fmt.Sprintf("die %q: must be one of %v", args[0], gameplay.Dice))
			}
			return s.SetDie(die), nil
		}))

	cmd.AddCommand(characterCommand(rootOpts, "status <status>", "Toggle a status", cobra.ExactArgs(1),
		func(s *gameplay.Snapshot, args []string) (bool, error) {
			status := gameplay.Status(args[0])
			if !status.Valid() {
				return false, NewExitError(ExitCommandError, fmt.Sprintf("status %q: must be one of %v", args[0], gameplay.Statuses))
			}
			return s.ToggleStatus(status), nil
		}))

	cmd.AddCommand(characterCommand(rootOpts, "item <slot> [text]", "Set an item slot; no text clears it", cobra.RangeArgs(1, 2),
		func(s *gameplay.Snapshot, args []string) (bool, error) {
			slot := gameplay.ItemSlot(args[0])
			if !slot.Valid() {
				return false, NewExitError(ExitCommandError, fmt.Sprintf("slot %q: must be one of %v", args[0], gameplay.ItemSlots))
			}
			if len(args) == 1 {
				return s.ClearItem(slot), nil
			}
			return s.SetItem(slot, args[1]), nil
		}))

	return cmd
}

// characterCommand builds a subcommand that applies edit to the current
// roster and prints it. The roster is saved only when edit reports a
// change.
func characterCommand(opts *RootOptions, use, short string, argsFn cobra.PositionalArgs,
	edit func(s *gameplay.Snapshot, args []string) (bool, error)) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          argsFn,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				var editErr error
				changed, err := a.EditGameplay(ctx, func(s *gameplay.Snapshot) bool {
					ok, err := edit(s, args)
					editErr = err
					return ok && err == nil
				})
				if editErr != nil {
					return editErr
				}
				if err != nil {
					return err
				}
				snap, err := a.Gameplay()
				if err != nil {
					return err
				}
				view := CharacterView{Changed: changed, Gameplay: snap.Export()}
				return out.Render(view, func(w io.Writer) { writeRoster(w, snap) })
			})
		},
	}
}

func writeRoster(w io.Writer, s *gameplay.Snapshot) {
	for i, c := range s.Characters {
		marker := " "
		if i == s.ActiveIndex {
			marker = "*"
		}
		die := string(c.Die)
		if die == "" {
			die = "-"
		}
		fmt.Fprintf(w, "%s %d. %s (%s)\n", marker, i, c.Name, c.Label)
		fmt.Fprintf(w, "     stuffing %d  heart %d  buttons %d  die %s\n", c.Stuffing, c.Heart, c.Buttons, die)
		if len(c.Statuses) > 0 {
			names := make([]string, len(c.Statuses))
			for j, st := range c.Statuses {
				names[j] = string(st)
			}
			fmt.Fprintf(w, "     statuses: %s\n", strings.Join(names, ", "))
		}
		for _, slot := range gameplay.ItemSlots {
			if text, ok := c.Items[slot]; ok {
				fmt.Fprintf(w, "     %s: %s\n", slot, text)
			}
		}
	}
}
