// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package trigger_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/trigger"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

type countingRunner struct {
	calls   atomic.Int32
	ctxErrs atomic.Int32
	block   chan struct{}
}

func (r *countingRunner) Run(ctx context.Context) pipeline.Outcome {
	if r.block != nil {
		<-r.block
	}
	if ctx.Err() != nil {
		r.ctxErrs.Add(1)
	}
	r.calls.Add(1)
	return pipeline.Outcome{RunID: "r", Content: "ok"}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    trigger.Action
		wantErr bool
	}{
		{"", trigger.ActionRefresh, false},
		{"refresh", trigger.ActionRefresh, false},
		{" background_refresh ", trigger.ActionBackgroundRefresh, false},
		{"REFRESH", "", true},
		{"stop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := trigger.ParseAction(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cliperr.IsInvalidInput(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDispatch_RefreshIsSynchronous(t *testing.T) {
	r := &countingRunner{}
	d := trigger.NewDispatcher(r, nil)

	out, started := d.Dispatch(context.Background(), trigger.ActionRefresh)
	assert.False(t, started)
	assert.Equal(t, "r", out.RunID)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestDispatch_BackgroundReturnsImmediately(t *testing.T) {
	r := &countingRunner{block: make(chan struct{})}
	d := trigger.NewDispatcher(r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out, started := d.Dispatch(ctx, trigger.ActionBackgroundRefresh)
	assert.True(t, started)
	assert.Empty(t, out.RunID)
	assert.Equal(t, int32(0), r.calls.Load())

	cancel()
	close(r.block)
	d.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, int32(0), r.ctxErrs.Load(), "background run must not see the request's cancellation")
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, trigger.ValidateSchedule(""))
	assert.NoError(t, trigger.ValidateSchedule("*/5 * * * *"))
	assert.NoError(t, trigger.ValidateSchedule("@every 30s"))
	assert.NoError(t, trigger.ValidateSchedule("@hourly"))

	err := trigger.ValidateSchedule("every five minutes")
	require.Error(t, err)
	assert.True(t, cliperr.IsInvalidInput(err))
}

func TestScheduler_Fires(t *testing.T) {
	r := &countingRunner{}
	s, err := trigger.NewScheduler("@every 1s", r, nil)
	require.NoError(t, err)
	assert.Equal(t, "@every 1s", s.Spec())

	stop := s.Start(context.Background())
	assert.False(t, s.Next().IsZero())

	require.Eventually(t, func() bool { return r.calls.Load() >= 1 }, 5*time.Second, 50*time.Millisecond)
	stop()
}

func TestScheduler_StopsWithContext(t *testing.T) {
	r := &countingRunner{}
	s, err := trigger.NewScheduler("@hourly", r, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stop := s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(0), r.calls.Load())
}

// ctxRunner blocks each run until its context is cancelled.
type ctxRunner struct {
	once     sync.Once
	started  chan struct{}
	finished atomic.Bool
}

func (r *ctxRunner) Run(ctx context.Context) pipeline.Outcome {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	r.finished.Store(true)
	return pipeline.Outcome{Reason: pipeline.ReasonCancelled}
}

func TestScheduler_StopCancelsAndWaitsForRunningJob(t *testing.T) {
	r := &ctxRunner{started: make(chan struct{})}
	s, err := trigger.NewScheduler("@every 1s", r, nil)
	require.NoError(t, err)

	stop := s.Start(context.Background())
	select {
	case <-r.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled run did not start")
	}

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop did not cancel the running job")
	}
	assert.True(t, r.finished.Load(), "stop returns only after the job has returned")
}

func TestNewScheduler_Invalid(t *testing.T) {
	_, err := trigger.NewScheduler("", &countingRunner{}, nil)
	require.Error(t, err)

	_, err = trigger.NewScheduler("61 * * * *", &countingRunner{}, nil)
	require.Error(t, err)
	assert.True(t, cliperr.IsInvalidInput(err))
}

func TestDispatcher_RecordsLastOutcome(t *testing.T) {
	r := &countingRunner{}
	d := trigger.NewDispatcher(r, nil)

	_, runs, ok := d.Last()
	assert.False(t, ok)
	assert.Zero(t, runs)

	d.Dispatch(context.Background(), trigger.ActionRefresh)
	d.Dispatch(context.Background(), trigger.ActionBackgroundRefresh)
	d.Wait()

	last, runs, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, int64(2), runs)
	assert.Equal(t, "r", last.RunID)
}

func TestDispatcher_IsRunner(t *testing.T) {
	var _ trigger.Runner = trigger.NewDispatcher(&countingRunner{}, nil)
}
