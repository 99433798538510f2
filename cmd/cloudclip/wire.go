// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/config"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/fetch"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/publish"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	_ "github.com/Z-zoe8013/ZTOOLBOX/internal/settings/sqlite" // register sqlite backend
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy"
	_ "github.com/Z-zoe8013/ZTOOLBOX/internal/strategy/netcut" // register netcut strategy
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy/textdb"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Config       *config.Config
	Store        settings.Store
	Strategy     strategy.Strategy
	Publisher    *publish.Publisher
	Orchestrator *pipeline.Orchestrator
	Dispatcher   *trigger.Dispatcher
	Metrics      *pipeline.Metrics
	Health       *pipeline.HealthTracker
}

// Package-level hooks so tests can substitute in-memory implementations.
var (
	settingsOpener   = settings.Open
	clipboardFactory = defaultClipboard
	fetchTransport   = fetch.Config{}
)

// defaultClipboard prefers the desktop clipboard and falls back to memory on
// headless hosts so runs still complete and notify.
func defaultClipboard(logger *slog.Logger) publish.Clipboard {
	sys := publish.SystemClipboard{}
	if sys.Available() {
		return sys
	}
	logger.Warn("no system clipboard available, refreshed text will only be kept in memory")
	return &publish.MemoryClipboard{}
}

// openSettings opens the configured settings backend. The config backend
// serves settings.store_id and settings.passphrase under the primary keys.
func openSettings(cfg *config.Config) (settings.Store, error) {
	return settingsOpener(settings.Config{
		Backend: cfg.Settings.Backend,
		Path:    cfg.Settings.Path,
		Service: cfg.Settings.Service,
		Values: map[string]string{
			settings.StoreIDKey.Primary:    cfg.Settings.StoreID,
			settings.PassphraseKey.Primary: cfg.Settings.Passphrase,
		},
	})
}

// buildStrategy creates the configured strategy on a fresh fetcher.
func buildStrategy(cfg *config.Config, logger *slog.Logger) (strategy.Strategy, error) {
	fcfg := fetchTransport
	fcfg.ConnectTimeout = cfg.HTTP.ConnectTimeout
	fcfg.ReadTimeout = cfg.HTTP.ReadTimeout

	opts := strategy.Options{
		Endpoint:   cfg.Endpoint(),
		RetryDelay: cfg.RetryDelay(),
	}
	if cfg.Strategy != textdb.Name {
		opts.Headers = cfg.Netcut.Headers
	}

	return strategy.New(cfg.Strategy, opts, fetch.New(fcfg, logger))
}

// buildNotifier fans notifications out to the log, the console writer and
// the optional webhook.
func buildNotifier(cfg *config.Config, logger *slog.Logger, console io.Writer) (publish.Notifier, error) {
	notifiers := publish.Multi{publish.LogNotifier{Logger: logger}}
	if cfg.Notify.Console && console != nil {
		notifiers = append(notifiers, &publish.WriterNotifier{W: console})
	}
	if cfg.Notify.WebhookURL != "" {
		hook, err := publish.NewWebhookNotifier(cfg.Notify.WebhookURL, "cloudclip")
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, hook)
	}
	return notifiers, nil
}

// WireApp creates all subsystems and wires them together.
func WireApp(cfg *config.Config, logger *slog.Logger, console io.Writer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	strat, err := buildStrategy(cfg, logger)
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating %s strategy", cfg.Strategy)
	}

	notifier, err := buildNotifier(cfg, logger, console)
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating notifier")
	}

	store, err := openSettings(cfg)
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "opening settings")
	}

	health, err := pipeline.NewHealthTracker(pipeline.DefaultHealthCooldown)
	if err != nil {
		_ = store.Close()
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating health tracker")
	}
	metrics := pipeline.NewMetrics()

	pub := publish.New(clipboardFactory(logger), notifier, publish.WithLogger(logger))

	orch, err := pipeline.New(strat, store, pub,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithHealth(health),
	)
	if err != nil {
		_ = store.Close()
		return nil, cliperr.Wrapf(err, cliperr.CodeCLISetupFailure, "creating pipeline")
	}

	return &App{
		Config:       cfg,
		Store:        store,
		Strategy:     strat,
		Publisher:    pub,
		Orchestrator: orch,
		Dispatcher:   trigger.NewDispatcher(orch, logger),
		Metrics:      metrics,
		Health:       health,
	}, nil
}

// Close waits for background runs and pending notifications, then releases
// the settings store.
func (a *App) Close() error {
	var errs []error
	if a.Dispatcher != nil {
		a.Dispatcher.Wait()
	}
	if a.Publisher != nil {
		a.Publisher.Wait()
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
