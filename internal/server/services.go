// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package server

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/Z-zoe8013/ZTOOLBOX/pkg/health"
)

// Refresher runs refresh actions and reports the latest outcome.
type Refresher interface {
	Dispatch(ctx context.Context, action trigger.Action) (pipeline.Outcome, bool)
	Last() (pipeline.Outcome, int64, bool)
}

// HealthReporter exposes the remote health of the active strategy.
type HealthReporter interface {
	Snapshot() health.Metrics
}

// ScheduleReporter exposes the cron schedule, if one is active.
type ScheduleReporter interface {
	Spec() string
	Next() time.Time
}

// Services holds dependencies injected into route handlers.
// Use NewServices to ensure the required ones are provided.
type Services struct {
	refresher Refresher
	strategy  string
	health    HealthReporter       // optional
	schedule  ScheduleReporter     // optional
	registry  *prometheus.Registry // optional; nil = no /metrics route
}

// ServicesOption sets an optional dependency.
type ServicesOption func(*Services)

func WithHealth(h HealthReporter) ServicesOption {
	return func(s *Services) { s.health = h }
}

func WithSchedule(sr ScheduleReporter) ServicesOption {
	return func(s *Services) { s.schedule = sr }
}

func WithRegistry(reg *prometheus.Registry) ServicesOption {
	return func(s *Services) { s.registry = reg }
}

// NewServices creates a Services instance with validation.
func NewServices(r Refresher, strategy string, opts ...ServicesOption) (*Services, error) {
	if r == nil {
		return nil, cliperr.New(cliperr.CodeServerConfigInvalid, "refresher is required")
	}
	if strategy == "" {
		return nil, cliperr.New(cliperr.CodeServerConfigInvalid, "strategy name is required")
	}
	s := &Services{refresher: r, strategy: strategy}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
