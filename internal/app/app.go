package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pgbak/internal/capture"
	"pgbak/internal/catalog"
	"pgbak/internal/config"
	"pgbak/internal/manifest"
)

// App is the application layer between the CLI and the capture service.
// It constructs all dependencies from config and manages the catalog and
// log file lifecycle on Close.
type App struct {
	cfg       *config.Config
	cat       capture.Catalog
	manifests *manifest.Store
	service   *capture.Service
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "Backup", "History").
// The caller must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	cat, err := catalog.NewCatalogFromConfig(cfg.Catalog, cfg.HostID)
	if err != nil {
		return nil, fmt.Errorf("creating catalog: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	manifests := manifest.NewStore(filepath.Join(cfg.BaseDir, "manifests"))

	svc := capture.NewService(
		filepath.Join(cfg.BaseDir, "backups"),
		func(label string) capture.Producer {
			return capture.NewPgBaseBackup(cfg.Postgres.User, label)
		},
		manifests,
		cat,
		&slogAdapter{l: logger.With("operation", operation)},
		capture.RealClock{},
		capture.UUIDGenerator{},
	)

	return &App{
		cfg:       cfg,
		cat:       cat,
		manifests: manifests,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Backup captures one base backup under the given label.
func (a *App) Backup(label string) (*capture.Result, error) {
	return a.service.Run(label)
}

// History returns the most recent capture records, newest first.
func (a *App) History(limit int) ([]*capture.CaptureRecord, error) {
	records, err := a.cat.ListCaptures(limit)
	if err != nil {
		return nil, fmt.Errorf("listing captures: %w", err)
	}
	return records, nil
}

// Manifest loads a stored manifest by ID.
func (a *App) Manifest(id string) (*manifest.Manifest, error) {
	return a.manifests.Load(id)
}

// Manifests returns the IDs of all stored manifests.
func (a *App) Manifests() ([]string, error) {
	return a.manifests.List()
}

// Close closes the catalog and the log file.
func (a *App) Close() error {
	var firstErr error

	if err := a.cat.Close(); err != nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}
