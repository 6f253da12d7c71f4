// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wires configuration, logging, storage, verifiers and the
// session manager for every command and for the terminal UI.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/educagestao/educagestao-tui/internal/config"
	"github.com/educagestao/educagestao-tui/internal/credentials"
	"github.com/educagestao/educagestao-tui/internal/logging"
	"github.com/educagestao/educagestao-tui/internal/security"
	"github.com/educagestao/educagestao-tui/internal/session"
	"github.com/educagestao/educagestao-tui/internal/storage"
)

// sqliteSessionSlot is the row key of the durable session in sqlite.
const sqliteSessionSlot = "local"

// App holds the wired components of one process.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *sqlx.DB
	Directory *credentials.Directory
	Verifier  credentials.Verifier
	Store     *session.TieredStore
	Manager   *session.Manager
	Gate      *security.Gate

	clock   session.Clock
	closers []io.Closer
}

type appOptions struct {
	config *config.Config
	logger *slog.Logger
	clock  session.Clock
}

// AppOption configures OpenApp.
type AppOption func(*appOptions)

// WithConfig uses cfg instead of loading the config file.
func WithConfig(cfg *config.Config) AppOption {
	return func(o *appOptions) {
		o.config = cfg
	}
}

// WithAppLogger uses logger instead of the rotating log file.
func WithAppLogger(logger *slog.Logger) AppOption {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// WithAppClock sets the clock of the store and the manager.
func WithAppClock(c session.Clock) AppOption {
	return func(o *appOptions) {
		o.clock = c
	}
}

// OpenApp loads configuration and opens every component. The caller must
// Close the returned App.
func OpenApp(ctx context.Context, args Args, opts ...AppOption) (app *App, err error) {
	o := appOptions{clock: session.SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.config
	if cfg == nil {
		if cfg, err = loadConfig(args); err != nil {
			return nil, err
		}
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}

	app = &App{Config: cfg, clock: o.clock}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if err := os.MkdirAll(cfg.Storage.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	app.Logger = o.logger
	if app.Logger == nil {
		logger, closer, err := logging.New(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		app.Logger = logger
		app.closers = append(app.closers, closer)
	}

	app.DB, err = storage.Open(ctx, cfg.Storage.DatabasePath, app.Logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.DB)

	app.Directory, err = credentials.NewDirectory(app.DB,
		credentials.WithBcryptCost(cfg.Auth.BcryptCost),
		credentials.WithDirectoryLogger(app.Logger))
	if err != nil {
		return nil, err
	}
	if _, err := app.Directory.SeedDefaultAdmin(ctx); err != nil {
		return nil, fmt.Errorf("failed to seed user directory: %w", err)
	}

	durable, err := app.openDurable(ctx)
	if err != nil {
		return nil, err
	}
	app.Store = session.NewTieredStore(durable, session.NewMemoryBackend(),
		session.WithStoreClock(o.clock),
		session.WithStoreLogger(app.Logger))

	app.Verifier = buildVerifier(cfg, app.Directory)
	app.Manager = session.NewManager(app.Store, app.Verifier,
		session.WithClock(o.clock),
		session.WithLogger(app.Logger))
	app.Gate = security.NewGate(app.Manager)

	return app, nil
}

func loadConfig(args Args) (*config.Config, error) {
	if args.ConfigPath == "" {
		cfg, err := config.Load()
		if err != nil {
			path, _ := config.ConfigPathTOML()
			return nil, &ConfigError{Path: path, Err: err}
		}
		return cfg, nil
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, &ConfigError{Path: args.ConfigPath, Err: err}
	}
	if _, err := os.Stat(args.ConfigPath); err != nil {
		return nil, &ConfigError{Path: args.ConfigPath, Err: err}
	}
	cfg, err := config.LoadFrom(args.ConfigPath, dir)
	if err != nil {
		return nil, &ConfigError{Path: args.ConfigPath, Err: err}
	}
	return cfg, nil
}

// openDurable opens the configured durable session backend.
func (a *App) openDurable(ctx context.Context) (session.Backend, error) {
	switch a.Config.Session.DurableBackend {
	case "sqlite":
		return session.NewSQLiteBackend(a.DB, sqliteSessionSlot), nil
	case "redis":
		client, err := session.DialRedis(ctx, a.Config.Session.RedisURL, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client)
		return session.NewRedisBackend(client, a.Config.Session.RedisKey), nil
	default:
		return session.NewFileBackend(a.Config.Session.File), nil
	}
}

// buildVerifier returns the credential verifier selected in config. The
// fallback chain tries the school API first when one is configured.
func buildVerifier(cfg *config.Config, dir *credentials.Directory) credentials.Verifier {
	remote := func() credentials.Verifier {
		return credentials.NewRemote(cfg.Auth.APIURL, cfg.AuthTimeout())
	}
	switch cfg.Auth.Verifier {
	case "remote":
		return remote()
	case "local":
		return dir
	case "demo":
		return credentials.Demo{}
	default:
		var chain credentials.Chain
		if cfg.Auth.APIURL != "" {
			chain = append(chain, remote())
		}
		chain = append(chain, dir)
		if cfg.Auth.DemoUsers {
			chain = append(chain, credentials.Demo{})
		}
		return chain
	}
}

// ServerVerifier is the verifier behind `serve`. It never includes the
// remote verifier, which would call the server itself.
func (a *App) ServerVerifier() credentials.Verifier {
	chain := credentials.Chain{a.Directory}
	if a.Config.Auth.DemoUsers {
		chain = append(chain, credentials.Demo{})
	}
	return chain
}

// SessionFile returns the durable session file, or "" when the durable
// tier is not file backed.
func (a *App) SessionFile() string {
	if a.Config.Session.DurableBackend != "file" {
		return ""
	}
	return a.Config.Session.File
}

// Now returns the current time on the app clock.
func (a *App) Now() time.Time {
	return a.clock.Now()
}

// Close stops the manager and releases resources in reverse order.
func (a *App) Close() error {
	if a.Manager != nil {
		a.Manager.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
