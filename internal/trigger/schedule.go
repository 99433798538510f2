// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package trigger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five-field cron expression or a descriptor such as
// "@every 10m". The empty string is valid and disables scheduling.
func ValidateSchedule(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(spec); err != nil {
		return cliperr.Wrapf(err, cliperr.CodeConfigValidateInvalidValue, "invalid schedule %q", spec)
	}
	return nil
}

// Scheduler fires refresh runs on a cron schedule. Scheduled runs use the
// context passed to Start, so stopping the scheduler also cancels them.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	id     cron.EntryID
	logger *slog.Logger

	mu     sync.Mutex
	runCtx context.Context
}

// NewScheduler registers runner on spec. Overlapping runs are not skipped.
func NewScheduler(spec string, runner Runner, logger *slog.Logger) (*Scheduler, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, cliperr.New(cliperr.CodeConfigValidateInvalidValue, "schedule must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithChain(cron.Recover(cron.DiscardLogger)),
	)

	s := &Scheduler{cron: c, spec: spec, logger: logger, runCtx: context.Background()}

	id, err := c.AddFunc(spec, func() {
		ctx := s.context()
		if ctx.Err() != nil {
			return
		}
		s.logger.InfoContext(ctx, "scheduled refresh firing", slog.String("schedule", s.spec))
		_ = runner.Run(ctx)
	})
	if err != nil {
		return nil, cliperr.Wrapf(err, cliperr.CodeConfigValidateInvalidValue, "invalid schedule %q", spec)
	}
	s.id = id
	return s, nil
}

// Start begins firing. The returned function stops the scheduler and waits
// for running jobs; it is also called when ctx is done.
func (s *Scheduler) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "refresh scheduler started",
		slog.String("schedule", s.spec),
		slog.Time("next", s.Next()),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		<-s.cron.Stop().Done()
		s.logger.Info("refresh scheduler stopped")
	}()

	return func() {
		cancel()
		<-done
	}
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCtx
}

// Next returns the next scheduled fire time, or the zero time if the
// scheduler has not been started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.id).Next
}

// Spec returns the schedule expression.
func (s *Scheduler) Spec() string {
	return s.spec
}
