// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

// Package pipeline runs a refresh: read credentials, try the strategy up to
// MaxAttempts times with a fixed pause between failures, publish the result
// and notify the user exactly once.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/publish"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// MaxAttempts is the number of tries per run. Every failure class is retried.
const MaxAttempts = 3

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Orchestrator runs refreshes for one strategy. It holds no per-run state, so
// concurrent calls to Run are independent and race only on the clipboard.
type Orchestrator struct {
	strategy  strategy.Strategy
	settings  settings.Getter
	publisher *publish.Publisher
	logger    *slog.Logger
	metrics   *Metrics
	health    *HealthTracker
	sleep     SleepFunc
	newRunID  func() string
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithHealth(h *HealthTracker) Option {
	return func(o *Orchestrator) { o.health = h }
}

// WithSleep replaces the pause between attempts, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithRunID replaces the run ID generator.
func WithRunID(fn func() string) Option {
	return func(o *Orchestrator) { o.newRunID = fn }
}

// WithClock replaces the time source.
func WithClock(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// New creates an Orchestrator.
func New(s strategy.Strategy, g settings.Getter, p *publish.Publisher, opts ...Option) (*Orchestrator, error) {
	if s == nil {
		return nil, cliperr.New(cliperr.CodeConfigValidateInvalidValue, "orchestrator requires a strategy")
	}
	if g == nil {
		return nil, cliperr.New(cliperr.CodeConfigValidateInvalidValue, "orchestrator requires a settings store")
	}
	if p == nil {
		return nil, cliperr.New(cliperr.CodeConfigValidateInvalidValue, "orchestrator requires a publisher")
	}

	o := &Orchestrator{
		strategy:  s,
		settings:  g,
		publisher: p,
		logger:    slog.Default(),
		sleep:     Sleep,
		newRunID:  uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Strategy returns the name of the strategy this orchestrator runs.
func (o *Orchestrator) Strategy() string {
	return o.strategy.Name()
}

// Health returns the tracker, or nil if none was configured.
func (o *Orchestrator) Health() *HealthTracker {
	return o.health
}

// Run performs one refresh. It never returns an error or panics on pipeline
// failures; the result and its cause are in the Outcome. Exactly one
// notification is sent per call.
func (o *Orchestrator) Run(ctx context.Context) (out Outcome) {
	out = Outcome{
		RunID:     o.newRunID(),
		Strategy:  o.strategy.Name(),
		StartedAt: o.now(),
	}
	logger := o.logger.With("run_id", out.RunID, "strategy", out.Strategy)

	defer func() {
		out.Duration = o.now().Sub(out.StartedAt)
		o.finish(ctx, logger, out)
	}()

	creds, err := settings.LoadCredentials(ctx, o.settings)
	if err != nil {
		out.Reason = ReasonOf(err)
		if out.Reason == ReasonInternal {
			logger.ErrorContext(ctx, "reading settings failed", "error", err)
		}
		out.Cause = err
		return out
	}

	pause := backoff.NewConstantBackOff(o.strategy.RetryDelay())
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		out.Attempts = attempt

		text, err := o.attempt(ctx, creds)
		reason := ReasonOf(err)
		o.metrics.observeAttempt(out.Strategy, reason)

		if err == nil {
			out.Content = text
			out.LastReason, out.Cause = ReasonNone, nil
			out.ClipboardErr = o.publisher.Publish(ctx, text)
			return out
		}

		out.LastReason, out.Cause = reason, err
		logger.WarnContext(ctx, "attempt failed",
			"attempt", attempt,
			"reason", reason,
			"error", err,
		)

		// A cancelled context ends the run whichever attempt it interrupted.
		if reason == ReasonCancelled || ctx.Err() != nil {
			out.Reason = ReasonCancelled
			return out
		}
		if attempt == MaxAttempts {
			break
		}
		if err := o.sleep(ctx, pause.NextBackOff()); err != nil {
			out.Reason = ReasonCancelled
			return out
		}
	}

	out.Reason = ReasonExhaustedRetries
	return out
}

// attempt runs a single strategy attempt, converting panics into errors.
func (o *Orchestrator) attempt(ctx context.Context, creds settings.Credentials) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = cliperr.Errorf(cliperr.CodeServerInternalFailure, "strategy panicked: %v", r)
		}
	}()
	return o.strategy.Attempt(ctx, creds)
}

func (o *Orchestrator) finish(ctx context.Context, logger *slog.Logger, out Outcome) {
	o.metrics.observeRun(out)

	if o.health != nil && out.Attempts > 0 && out.Reason != ReasonCancelled {
		if out.Success() {
			o.health.RecordSuccess()
		} else {
			o.health.RecordFailure(out.LastReason)
		}
	}

	attrs := []any{
		"attempts", out.Attempts,
		"duration", out.Duration,
	}
	switch {
	case out.Success():
		attrs = append(attrs, "chars", len([]rune(out.Content)))
		if out.ClipboardErr != nil {
			attrs = append(attrs, "clipboard_error", out.ClipboardErr)
		}
		logger.InfoContext(ctx, "refresh succeeded", attrs...)
	default:
		attrs = append(attrs, "reason", out.Reason)
		if out.LastReason != ReasonNone {
			attrs = append(attrs, "last_reason", out.LastReason)
		}
		if out.Cause != nil {
			attrs = append(attrs, "error", fmt.Sprint(out.Cause))
		}
		logger.WarnContext(ctx, "refresh failed", attrs...)
	}

	o.publisher.Notify(ctx, out.Message())
}
