package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/clock"
	"github.com/roach88/fablekeep/internal/session"
	"github.com/roach88/fablekeep/internal/transfer"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output  string // file to write; "-" is stdout; empty picks a name
	Session string // teacher: session to export (default active)
	All     bool   // teacher: export every session as a ZIP archive
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the roster or sessions to a file",
		Long: `Write the current record to a portable file.

Students export their roster as fablekeep-backup-<date>.json. Teachers
export one session as <name>-<id>.json, or every session with --all as a
ZIP archive.

Examples:
  fablekeep export
  fablekeep export -o - | jq .
  fablekeep --role teacher export --all -o sessions.zip`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				return runExport(cmd, opts, a, out)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (- for stdout)")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id to export (default: active session)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "export every session as a ZIP archive")

	return cmd
}

func runExport(cmd *cobra.Command, opts *ExportOptions, a *app.App, out *OutputFormatter) error {
	var buf bytes.Buffer
	var name string
	now := clock.System{}.Now()

	switch {
	case a.Role() == backup.Student:
		snap, err := a.Gameplay()
		if err != nil {
			return err
		}
		if err := transfer.ExportSolo(&buf, snap, now); err != nil {
			return err
		}
		name = transfer.SoloFileName(now)
	case opts.All:
		if err := transfer.ExportArchive(&buf, a.Sessions().List()); err != nil {
			return err
		}
		name = "fablekeep-sessions-" + now.UTC().Format("2006-01-02") + ".zip"
	default:
		id := opts.Session
		if id == "" {
			id = a.Sessions().ActiveID()
		}
		if id == "" {
			return app.ErrNoActiveSession
		}
		s, ok := a.Sessions().Get(id)
		if !ok {
			return fmt.Errorf("session %q: %w", id, session.ErrNotFound)
		}
		if err := transfer.ExportSession(&buf, s); err != nil {
			return err
		}
		name = transfer.SessionFileName(s)
	}

	if opts.Output == "-" {
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if opts.Output != "" {
		name = opts.Output
	}
	if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write export", err)
	}
	return out.Render(map[string]any{"file": name, "bytes": buf.Len()}, func(w io.Writer) {
		fmt.Fprintf(w, "Exported to %s\n", name)
	})
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a roster, session or session archive",
		Long: `Read a file written by export.

A roster import is sanitized field by field against the current roster; the
outcome reports whether anything had to be repaired. Session files and ZIP
archives add or replace sessions by id.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read import file", err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if a.Role() == backup.Student {
					return importSolo(ctx, a, out, data)
				}
				return importSessions(ctx, a, out, args[0], data)
			})
		},
	}
}

func importSolo(ctx context.Context, a *app.App, out *OutputFormatter, data []byte) error {
	snap, err := a.Gameplay()
	if err != nil {
		return err
	}
	report, err := transfer.ImportSolo(bytes.NewReader(data), snap)
	if err != nil {
		return err
	}
	if err := a.SaveGameplay(ctx, snap); err != nil {
		return err
	}
	outcome := report.Outcome().String()
	return out.Render(map[string]any{"outcome": outcome, "gameplay": snap.Export()}, func(w io.Writer) {
		fmt.Fprintf(w, "Imported roster (%s)\n", outcome)
		writeRoster(w, snap)
	})
}

func importSessions(ctx context.Context, a *app.App, out *OutputFormatter, path string, data []byte) error {
	now := clock.System{}.Now()
	var sessions []*session.Session
	var skipped []string
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		var err error
		sessions, skipped, err = transfer.ImportArchive(data, now)
		if err != nil {
			return err
		}
	} else {
		s, err := transfer.ImportSession(bytes.NewReader(data), now)
		if err != nil {
			return err
		}
		sessions = []*session.Session{s}
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		err := a.UpdateSession(ctx, s.ID, func(ctx context.Context, r *session.Registry) error {
			r.Put(ctx, s)
			return nil
		})
		if err != nil {
			return err
		}
		ids = append(ids, s.ID)
	}
	if skipped == nil {
		skipped = []string{}
	}
	return out.Render(map[string]any{"imported": ids, "skipped": skipped}, func(w io.Writer) {
		fmt.Fprintf(w, "Imported %d session(s)\n", len(ids))
		for _, name := range skipped {
			fmt.Fprintf(w, "  skipped %s\n", name)
		}
	})
}
