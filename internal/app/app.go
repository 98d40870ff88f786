// Package app wires together configuration, the API client, the logger and
// the local store into a single Deps struct that commands receive at runtime.
package app

import (
	"fmt"
	"log/slog"

	"github.com/derickschaefer/emdash/internal/api"
	"github.com/derickschaefer/emdash/internal/config"
	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
	"github.com/derickschaefer/emdash/internal/store"
)

// Deps holds all runtime dependencies injected into command Run functions.
// Store is opened lazily; commands that never touch presets never lock the
// database file.
type Deps struct {
	Config *config.Config
	Client *api.Client
	Logger *slog.Logger
	Store  *store.Store
}

// New builds a Deps from resolved config.
func New(cfg *config.Config, logger *slog.Logger) *Deps {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := api.NewClient(
		cfg.APIURL,
		cfg.Timeout,
		cfg.Rate,
		logger,
		cfg.Debug,
	)
	return &Deps{
		Config: cfg,
		Client: client,
		Logger: logger,
	}
}

// RequireStore opens the local database on first use.
func (d *Deps) RequireStore() (*store.Store, error) {
	if d.Store != nil {
		return d.Store, nil
	}
	if d.Config.DBPath == "" {
		return nil, fmt.Errorf("no database path configured (set db_path or %s)", config.EnvDBPath)
	}
	s, err := store.Open(d.Config.DBPath)
	if err != nil {
		return nil, err
	}
	d.Store = s
	return s, nil
}

// Close releases the store if it was opened.
func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	err := d.Store.Close()
	d.Store = nil
	return err
}

// NewComposer builds a dashboard composer over the API client, starting at
// sel.
func (d *Deps) NewComposer(sel model.Selection) *dashboard.Composer {
	return dashboard.NewComposer(d.Client, dashboard.Options{
		Selection: sel,
		Logger:    d.Logger,
	})
}
