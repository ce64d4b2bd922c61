package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/backup"
)

// LoadOptions holds flags for the backup load command.
type LoadOptions struct {
	*RootOptions
	Choose string // slot to take when autosave and manual disagree
}

// NewBackupCommand creates the backup command group.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Push and load remote backups",
		Long: `Manage the remote backup of the current record: the solo roster for
students, the active session for teachers.

Every record has two slots. Edits autosave to the autosave slot; "backup
push" writes the manual slot. "backup load" compares both and loads the
one that wins, or stops and lists the differences when they disagree.

Examples:
  fablekeep backup push
  fablekeep backup load
  fablekeep backup load --choose manual`,
	}
	cmd.AddCommand(newBackupPushCommand(rootOpts))
	cmd.AddCommand(newBackupPullCommand(rootOpts))
	cmd.AddCommand(newBackupLoadCommand(rootOpts))
	return cmd
}

func newBackupPushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "push",
		Short:         "Write the current record to the manual slot",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				file, err := a.PushBackup(ctx)
				if err != nil {
					return err
				}
				data := map[string]any{
					"file":       file.ID,
					"slot":       string(file.Tags.Slot),
					"sessionKey": file.Tags.SessionKey,
					"modifiedAt": file.ModifiedAt.UTC().Format(time.RFC3339),
				}
				return out.Render(data, func(w io.Writer) {
					fmt.Fprintf(w, "Backed up %s to the manual slot (%s)\n", file.Tags.SessionKey, file.ID)
				})
			})
		},
	}
}

func newBackupPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "pull <autosave|manual>",
		Short:         "Print one slot without loading it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			slot := backup.Slot(args[0])
			if !slot.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("slot %q: must be autosave or manual", args[0]))
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				rec, ok, err := a.PullBackup(ctx, slot)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s slot: %w", slot, backup.ErrNothingToLoad)
				}
				return out.Render(recordView(rec), func(w io.Writer) {
					fmt.Fprintf(w, "%s slot, updated %s\n", rec.Slot, rec.UpdatedAt.UTC().Format(time.RFC3339))
					enc := json.NewEncoder(w)
					enc.SetIndent("", "  ")
					_ = enc.Encode(rec.Data)
				})
			})
		},
	}
}

func newBackupLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the winning backup slot",
		Long: `Load the current record from its backup.

When only one slot exists, or both hold the same data, it is loaded. When
they disagree nothing is changed: the differing fields are listed and the
command exits with status 1. Rerun with --choose to pick a slot.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Choose != "" && !backup.Slot(opts.Choose).Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("--choose %q: must be autosave or manual", opts.Choose))
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				d, err := a.BeginLoad(ctx)
				if err != nil {
					return err
				}
				if rec, ok := d.Resolved(); ok {
					return out.Render(map[string]any{"loaded": string(rec.Slot)}, func(w io.Writer) {
						fmt.Fprintf(w, "Loaded the %s slot\n", rec.Slot)
					})
				}

				if opts.Choose != "" {
					if err := a.ResolveLoad(ctx, backup.Slot(opts.Choose)); err != nil {
						return err
					}
					return out.Render(map[string]any{"loaded": opts.Choose}, func(w io.Writer) {
						fmt.Fprintf(w, "Loaded the %s slot\n", opts.Choose)
					})
				}

				a.CancelLoad()
				if opts.Format == "json" {
					_ = out.Error("E_CONFLICT", "backup slots disagree", conflictView(d))
				} else {
					writeConflict(out.Writer, d)
				}
				return NewExitError(ExitFailure, "backup slots disagree; rerun with --choose autosave|manual")
			})
		},
	}

	cmd.Flags().StringVar(&opts.Choose, "choose", "", "slot to load when the slots disagree (autosave|manual)")
	return cmd
}

func recordView(rec *backup.Record) map[string]any {
	return map[string]any{
		"slot":       string(rec.Slot),
		"updatedAt":  rec.UpdatedAt.UTC().Format(time.RFC3339),
		"modifiedAt": rec.ModifiedAt.UTC().Format(time.RFC3339),
		"data":       rec.Data,
	}
}

func conflictView(d *backup.Decision) map[string]any {
	return map[string]any{
		"autosave":    recordView(d.Autosave),
		"manual":      recordView(d.Manual),
		"differences": d.Differences,
	}
}

func writeConflict(w io.Writer, d *backup.Decision) {
	fmt.Fprintln(w, "The autosave and manual backups disagree.")
	fmt.Fprintf(w, "  autosave: updated %s\n", d.Autosave.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  manual:   updated %s\n", d.Manual.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(w, "Differences:")
	for _, p := range d.Differences {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintln(w, "Rerun with --choose autosave or --choose manual.")
}
