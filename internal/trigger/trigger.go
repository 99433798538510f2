// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package trigger turns external requests (CLI, HTTP, cron) into refresh runs.
// Every surface ends in the same Runner.Run call.
package trigger

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// Action is the verb a trigger carries.
type Action string

const (
	// ActionRefresh runs a refresh and waits for its outcome.
	ActionRefresh Action = "refresh"
	// ActionBackgroundRefresh starts a refresh and returns immediately.
	ActionBackgroundRefresh Action = "background_refresh"
)

// ParseAction validates an action string. The empty string means refresh.
func ParseAction(s string) (Action, error) {
	switch Action(strings.TrimSpace(s)) {
	case "", ActionRefresh:
		return ActionRefresh, nil
	case ActionBackgroundRefresh:
		return ActionBackgroundRefresh, nil
	default:
		return "", cliperr.Errorf(cliperr.CodeServerRequestInvalid,
			"unknown action %q (want %q or %q)", s, ActionRefresh, ActionBackgroundRefresh)
	}
}

// Runner performs one refresh run.
type Runner interface {
	Run(ctx context.Context) pipeline.Outcome
}

// Dispatcher runs actions against a Runner, remembers the latest outcome and
// keeps track of background runs so callers can wait for them on shutdown.
// A Dispatcher is itself a Runner, so the scheduler can share it.
type Dispatcher struct {
	runner Runner
	logger *slog.Logger
	wg     sync.WaitGroup

	mu      sync.RWMutex
	runs    int64
	last    pipeline.Outcome
	hasLast bool
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(r Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: r, logger: logger}
}

// Dispatch performs action. For ActionRefresh it returns the outcome; for
// ActionBackgroundRefresh it returns immediately with started set and a zero
// outcome. Background runs are detached from ctx cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action) (out pipeline.Outcome, started bool) {
	switch action {
	case ActionBackgroundRefresh:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.Run(context.WithoutCancel(ctx))
		}()
		d.logger.DebugContext(ctx, "background refresh started")
		return pipeline.Outcome{}, true
	default:
		return d.Run(ctx), false
	}
}

// Run performs a refresh synchronously and records its outcome.
func (d *Dispatcher) Run(ctx context.Context) pipeline.Outcome {
	out := d.runner.Run(ctx)

	d.mu.Lock()
	d.runs++
	d.last = out
	d.hasLast = true
	d.mu.Unlock()

	return out
}

// Last returns the most recent outcome and the number of completed runs.
func (d *Dispatcher) Last() (out pipeline.Outcome, runs int64, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.runs, d.hasLast
}

// Wait blocks until all background runs have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
