package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/canon"
	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/session"
)

// errTeacherOnly is returned by session commands run as a student.
var errTeacherOnly = errors.New("session commands need the teacher role (set role: teacher or pass --role teacher)")

// SessionOptions holds flags shared by session subcommands.
type SessionOptions struct {
	*RootOptions
	ID string // target session; empty uses the active session
}

// SessionRow is one line of "session list".
type SessionRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	Started     string `json:"started,omitempty"`
	UpdatedAt   string `json:"updatedAt"`
	Fingerprint string `json:"fingerprint"` // content hash of the whole session
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage classroom play sessions",
		Long: `Create and manage the sessions a teacher runs.

Commands that change a session act on the active session unless --id is
given.

Examples:
  fablekeep session create "Room 4"
  fablekeep session status 1-2 started
  fablekeep session sleep add 12
  fablekeep session sleep status 12 restless`,
	}
	cmd.PersistentFlags().StringVar(&opts.ID, "id", "", "session id (default: the active session)")

	cmd.AddCommand(newSessionCreateCommand(opts))
	cmd.AddCommand(newSessionListCommand(opts))
	cmd.AddCommand(newSessionSelectCommand(opts))
	cmd.AddCommand(newSessionDeleteCommand(opts))
	cmd.AddCommand(newSessionRenameCommand(opts))
	cmd.AddCommand(newSessionStatusCommand(opts))
	cmd.AddCommand(newSessionResumeCommand(opts))
	cmd.AddCommand(newSessionSleepCommand(opts))
	cmd.AddCommand(newSessionLostCommand(opts))
	return cmd
}

// withTeacher is withApp restricted to the teacher role.
func withTeacher(cmd *cobra.Command, opts *SessionOptions, fn func(ctx context.Context, a *app.App, out *OutputFormatter) error) error {
	return withApp(cmd, opts.RootOptions, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
		if a.Role() != backup.Teacher {
			return errTeacherOnly
		}
		return fn(ctx, a, out)
	})
}

// target resolves the session a command acts on.
func (o *SessionOptions) target(a *app.App) (string, error) {
	if o.ID != "" {
		if _, ok := a.Sessions().Get(o.ID); !ok {
			return "", fmt.Errorf("session %q: %w", o.ID, session.ErrNotFound)
		}
		return o.ID, nil
	}
	id := a.Sessions().ActiveID()
	if id == "" {
		return "", app.ErrNoActiveSession
	}
	return id, nil
}

// sessionChange builds a subcommand that applies change to the target
// session and prints it.
func sessionChange(opts *SessionOptions, use, short string, argsFn cobra.PositionalArgs,
	change func(ctx context.Context, r *session.Registry, id string, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          argsFn,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTeacher(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				id, err := opts.target(a)
				if err != nil {
					return err
				}
				err = a.UpdateSession(ctx, id, func(ctx context.Context, r *session.Registry) error {
					return change(ctx, r, id, args)
				})
				if err != nil {
					return err
				}
				s, _ := a.Sessions().Get(id)
				return out.Render(s.Export(), func(w io.Writer) { writeSession(w, s) })
			})
		},
	}
}

func newSessionCreateCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "create <name>",
		Short:         "Create a session and make it active",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTeacher(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				s := a.CreateSession(ctx, strings.Join(args, " "))
				if err := a.Sessions().Select(ctx, s.ID); err != nil {
					return err
				}
				return out.Render(s.Export(), func(w io.Writer) {
					fmt.Fprintf(w, "Created session %s (%s)\n", s.Name, s.ID)
				})
			})
		},
	}
}

func newSessionListCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTeacher(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				active := a.Sessions().ActiveID()
				rows := []SessionRow{}
				for _, s := range a.Sessions().List() {
					started, _ := s.StartedScene()
					exported := s.Export()
					fp, err := canon.Fingerprint(canon.DomainSession, exported)
					if err != nil {
						return err
					}
					rows = append(rows, SessionRow{
						ID:          s.ID,
						Name:        s.Name,
						Active:      s.ID == active,
						Started:     started,
						UpdatedAt:   exported["updatedAt"].(string),
						Fingerprint: fp,
					})
				}
				return out.Render(rows, func(w io.Writer) {
					if len(rows) == 0 {
						fmt.Fprintln(w, "No sessions.")
						return
					}
					for _, r := range rows {
						marker := " "
						if r.Active {
							marker = "*"
						}
						fmt.Fprintf(w, "%s %s  %-20s scene %-6s updated %s  %.12s\n", marker, r.ID, r.Name, orDash(r.Started), r.UpdatedAt, r.Fingerprint)
					}
				})
			})
		},
	}
}

func newSessionSelectCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "select <id>",
		Short:         "Make a session active",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTeacher(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := a.Sessions().Select(ctx, args[0]); err != nil {
					return err
				}
				s, _ := a.Sessions().Active()
				return out.Render(s.Export(), func(w io.Writer) {
					fmt.Fprintf(w, "Active session: %s (%s)\n", s.Name, s.ID)
				})
			})
		},
	}
}

func newSessionDeleteCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTeacher(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if !a.Sessions().Delete(ctx, args[0]) {
					return fmt.Errorf("session %q: %w", args[0], session.ErrNotFound)
				}
				return out.Render(map[string]any{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted session %s\n", args[0])
				})
			})
		},
	}
}

func newSessionRenameCommand(opts *SessionOptions) *cobra.Command {
	return sessionChange(opts, "rename <name>", "Rename a session", cobra.MinimumNArgs(1),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			return r.Rename(ctx, id, strings.Join(args, " "))
		})
}

func newSessionStatusCommand(opts *SessionOptions) *cobra.Command {
	return sessionChange(opts, "status <scene> <started|finished|none>", "Set a scene's progress", cobra.ExactArgs(2),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			status, err := parseSceneStatus(args[1])
			if err != nil {
				return err
			}
			return r.SetSceneStatus(ctx, id, args[0], status)
		})
}

func parseSceneStatus(s string) (session.SceneStatus, error) {
	switch s {
	case "none", "":
		return session.NoStatus, nil
	case string(session.Started):
		return session.Started, nil
	case string(session.Finished):
		return session.Finished, nil
	}
	return "", fmt.Errorf("scene status %q: %w", s, session.ErrInvalidStatus)
}

func newSessionResumeCommand(opts *SessionOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "resume",
		Short:         "Print the scene a session should resume at",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTeacher(cmd, opts, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				id, err := opts.target(a)
				if err != nil {
					return err
				}
				sceneID, err := a.ResumePoint(id)
				if err != nil {
					return err
				}
				return out.Render(map[string]any{"session": id, "scene": sceneID}, func(w io.Writer) {
					if sceneID == "" {
						fmt.Fprintln(w, "No scenes to resume.")
						return
					}
					fmt.Fprintf(w, "Resume at scene %s\n", sceneID)
				})
			})
		},
	}
}

func newSessionSleepCommand(opts *SessionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sleep",
		Short: "Edit the sleep card log",
	}
	cmd.AddCommand(sessionChange(opts, "add <card>", "Add a sleeping card", cobra.ExactArgs(1),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			return r.AddSleepCard(ctx, id, args[0])
		}))
	cmd.AddCommand(sessionChange(opts, "status <card> <sleeping|restless|waking>", "Change a card's status", cobra.ExactArgs(2),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			return r.SetSleepCardStatus(ctx, id, args[0], session.SleepStatus(args[1]))
		}))
	cmd.AddCommand(sessionChange(opts, "remove <card>", "Remove a card", cobra.ExactArgs(1),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			return r.RemoveSleepCard(ctx, id, args[0])
		}))
	return cmd
}

func newSessionLostCommand(opts *SessionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lost",
		Short: "Edit the lost card log",
	}
	cmd.AddCommand(sessionChange(opts, "add <card> [name]", "Add a lost card", cobra.MinimumNArgs(1),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			return r.AddLostCard(ctx, id, args[0], strings.Join(args[1:], " "))
		}))
	cmd.AddCommand(sessionChange(opts, "remove <card>", "Remove a lost card", cobra.ExactArgs(1),
		func(ctx context.Context, r *session.Registry, id string, args []string) error {
			return r.RemoveLostCard(ctx, id, args[0])
		}))
	return cmd
}

func writeSession(w io.Writer, s *session.Session) {
	fmt.Fprintf(w, "%s (%s)\n", s.Name, s.ID)
	if len(s.SceneProgress) > 0 {
		ids := make([]string, 0, len(s.SceneProgress))
		for id := range s.SceneProgress {
			ids = append(ids, id)
		}
		scene.SortIDs(ids)
		fmt.Fprintln(w, "Scenes:")
		for _, id := range ids {
			fmt.Fprintf(w, "  %-6s %s\n", id, s.SceneProgress[id])
		}
	}
	if len(s.SleepCards) > 0 {
		fmt.Fprintln(w, "Sleep cards:")
		for _, c := range s.SleepCards {
			fmt.Fprintf(w, "  %-6s %s\n", c.ID, c.Status)
		}
	}
	if len(s.LostCards) > 0 {
		fmt.Fprintln(w, "Lost cards:")
		for _, c := range s.LostCards {
			fmt.Fprintf(w, "  %-6s %s\n", c.ID, c.Name)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
