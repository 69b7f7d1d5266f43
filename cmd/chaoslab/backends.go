package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mercator-hq/chaoslab/pkg/annotations"
	"mercator-hq/chaoslab/pkg/annotations/recorder"
	"mercator-hq/chaoslab/pkg/annotations/storage"
	"mercator-hq/chaoslab/pkg/config"
	"mercator-hq/chaoslab/pkg/flags"
	"mercator-hq/chaoslab/pkg/objectstore"
)

// backends holds the collaborators built from configuration.
type backends struct {
	store       objectstore.Store
	annotations annotations.Storage
	recorder    *recorder.Recorder
	flags       flags.Controller
	flagFile    *flags.FileController
}

// openStore builds the object store selected by cfg.
func openStore(cfg *config.ObjectStoreConfig) (objectstore.Store, error) {
	switch cfg.Backend {
	case "memory":
		return objectstore.NewMemoryStore(), nil
	case "sqlite":
		return objectstore.NewSQLiteStore(objectstore.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	case "file":
		return objectstore.NewFileStore(objectstore.FileConfig{
			Root:     cfg.File.Root,
			Compress: cfg.File.Compress,
		})
	}
	return nil, fmt.Errorf("unsupported object store backend: %s", cfg.Backend)
}

// openAnnotations builds the annotation storage and its recorder.
func openAnnotations(cfg *config.AnnotationsConfig) (annotations.Storage, *recorder.Recorder, error) {
	var store annotations.Storage
	switch cfg.Backend {
	case "memory":
		store = storage.NewMemoryStorage()
	case "sqlite":
		s, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      cfg.SQLite.WALMode,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create SQLite annotation storage: %w", err)
		}
		store = s
	default:
		return nil, nil, fmt.Errorf("unsupported annotations backend: %s", cfg.Backend)
	}

	rec := recorder.New(store, &recorder.Config{
		CreatedBy:    cfg.CreatedBy,
		DefaultTTL:   cfg.DefaultTTL,
		WriteTimeout: cfg.WriteTimeout,
	})
	return store, rec, nil
}

// openFlags builds the flag controller. The file controller is also
// returned so callers can watch it.
func openFlags(cfg *config.FlagsConfig) (flags.Controller, *flags.FileController, error) {
	switch cfg.Backend {
	case "memory":
		return flags.NewMemoryController(cfg.Predefined...), nil, nil
	case "file":
		c, err := flags.NewFileController(flags.FileConfig{
			Path:             cfg.File.Path,
			CreateIfMissing:  cfg.File.CreateIfMissing,
			DebounceInterval: cfg.File.DebounceInterval,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	}
	return nil, nil, fmt.Errorf("unsupported flags backend: %s", cfg.Backend)
}

// openBackends builds every collaborator. On error, anything already opened
// is closed.
func openBackends(cfg *config.Config) (*backends, error) {
	b := &backends{}

	var err error
	if b.store, err = openStore(&cfg.ObjectStore); err != nil {
		return nil, err
	}
	if b.annotations, b.recorder, err = openAnnotations(&cfg.Annotations); err != nil {
		b.Close()
		return nil, err
	}
	if b.flags, b.flagFile, err = openFlags(&cfg.Flags); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// watchFlags reloads the flag file on external edits until ctx is done.
func (b *backends) watchFlags(ctx context.Context) {
	if b.flagFile == nil {
		return
	}
	go func() {
		if err := b.flagFile.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("flag file watch stopped", "error", err)
		}
	}()
}

// Close releases every opened backend.
func (b *backends) Close() error {
	var errs []error
	if b.flagFile != nil {
		errs = append(errs, b.flagFile.Close())
	}
	if b.annotations != nil {
		errs = append(errs, b.annotations.Close())
	}
	if b.store != nil {
		errs = append(errs, b.store.Close())
	}
	return errors.Join(errs...)
}
