package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fablekeep/internal/app"
	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/config"
	"github.com/roach88/fablekeep/internal/gameplay"
	"github.com/roach88/fablekeep/internal/session"
)

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Role != "" {
		cfg.Role = opts.Role
		if err := cfg.Validate(); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --role", err)
		}
	}
	return cfg, nil
}

// newLogger builds the text logger all commands share. Diagnostics go to
// w so JSON output on stdout stays parseable.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// withApp opens the configured app, runs fn and closes the app, which
// flushes any pending autosave. Errors from fn are reported in the output
// format and returned as an *ExitError.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App, out *OutputFormatter) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg, opts.Verbose)
	out := newFormatter(cmd, opts)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open fablekeep", err)
	}
	logger.Debug("app opened", "db", cfg.DB, "role", a.Role(), "scenes", len(a.Scenes().Scenes), "backup", a.BackupEnabled())

	runErr := fn(ctx, a, out)
	if closeErr := a.Close(ctx); closeErr != nil {
		logger.Error("error closing fablekeep", "error", closeErr)
		if runErr == nil {
			runErr = WrapExitError(ExitFailure, "failed to save", closeErr)
		}
	}
	if runErr == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(runErr, &exitErr) {
		return runErr
	}
	code := errorCode(runErr)
	if opts.Format == "json" {
		_ = out.Error(code, runErr.Error(), nil)
	}
	return WrapExitError(exitCodeFor(code), code, runErr)
}

// errorCode classifies domain errors for JSON responses.
func errorCode(err error) string {
	var validation *gameplay.ValidationError
	switch {
	case errors.Is(err, app.ErrNoActiveSession):
		return "E_NO_SESSION"
	case errors.Is(err, app.ErrUnknownScene), errors.Is(err, session.ErrNotFound),
		errors.Is(err, session.ErrCardNotFound):
		return "E_NOT_FOUND"
	case errors.Is(err, app.ErrBackupDisabled):
		return "E_BACKUP_DISABLED"
	case errors.Is(err, backup.ErrNothingToLoad):
		return "E_NOTHING_TO_LOAD"
	case backup.IsRemoteError(err):
		return "E_REMOTE"
	case errors.As(err, &validation), errors.Is(err, session.ErrInvalidStatus),
		errors.Is(err, session.ErrInvalidCard), errors.Is(err, session.ErrCardExists),
		errors.Is(err, backup.ErrUnknownSlot), errors.Is(err, backup.ErrMalformedRecord):
		return "E_INVALID"
	}
	return "E_FAILED"
}

func exitCodeFor(code string) int {
	switch code {
	case "E_INVALID", "E_NOT_FOUND":
		return ExitCommandError
	}
	return ExitFailure
}
