package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/roach88/fablekeep/internal/backup"
	"github.com/roach88/fablekeep/internal/backup/gcs"
	"github.com/roach88/fablekeep/internal/clock"
	"github.com/roach88/fablekeep/internal/config"
	"github.com/roach88/fablekeep/internal/scene"
	"github.com/roach88/fablekeep/internal/store"
)

// Open builds an App from configuration: a sqlite medium (or an in-memory
// one for ":memory:"), the scenes in cfg.ScenesDir and the configured
// backup backend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	medium, err := openMedium(cfg)
	if err != nil {
		return nil, err
	}

	scenes, err := LoadScenes(cfg.ScenesDir, logger)
	if err != nil {
		release(logger, medium)
		return nil, err
	}

	remote, err := openRemote(ctx, cfg.Backup)
	if err != nil {
		release(logger, medium)
		return nil, err
	}

	a, err := New(ctx, Options{
		Medium:   medium,
		Scenes:   scenes,
		Role:     backup.Role(cfg.Role),
		Remote:   remote,
		AppID:    cfg.Backup.AppID,
		Debounce: cfg.Backup.Debounce,
		Logger:   logger,
	})
	if err != nil {
		release(logger, medium, remote)
		return nil, err
	}
	return a, nil
}

func openMedium(cfg *config.Config) (store.Medium, error) {
	if cfg.DB == ":memory:" {
		return store.NewMemoryMedium(cfg.QuotaBytes), nil
	}
	db, err := store.Open(cfg.DB, cfg.QuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DB, err)
	}
	return db, nil
}

// release closes whatever Open acquired before a later step failed.
func release(logger *slog.Logger, resources ...any) {
	for _, r := range resources {
		c, ok := r.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			logger.Warn("close after failed open", "error", err)
		}
	}
}

// LoadScenes validates and loads every scene in dir. A missing directory
// yields an empty collection.
func LoadScenes(dir string, logger *slog.Logger) (*scene.Collection, error) {
	validator, err := scene.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("scene schema: %w", err)
	}
	loader := &scene.Loader{Validator: validator, Logger: logger}
	scenes, err := loader.LoadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("scene directory not found", "dir", dir)
		return &scene.Collection{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load scenes: %w", err)
	}
	return scenes, nil
}

func openRemote(ctx context.Context, cfg config.Backup) (backup.Remote, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return backup.NewMemoryRemote(clock.System{}), nil
	case config.BackendGCS:
		remote, err := gcs.New(ctx, gcs.Config{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Token:           cfg.Token,
			CredentialsFile: cfg.CredentialsFile,
			Endpoint:        cfg.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("open backup bucket: %w", err)
		}
		return remote, nil
	default:
		return nil, nil
	}
}
