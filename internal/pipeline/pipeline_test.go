// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Z-zoe8013/ZTOOLBOX/internal/crypto"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/fetch"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/pipeline"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/publish"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/settings"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy"
	"github.com/Z-zoe8013/ZTOOLBOX/internal/strategy/textdb"
	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// scripted returns the queued results in order, repeating the last one.
type scripted struct {
	mu      sync.Mutex
	delay   time.Duration
	results []result
	calls   int
	creds   []settings.Credentials
}

type result struct {
	text string
	err  error
}

func (s *scripted) Name() string              { return "scripted" }
func (s *scripted) RetryDelay() time.Duration { return s.delay }

func (s *scripted) Attempt(_ context.Context, creds settings.Credentials) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	s.creds = append(s.creds, creds)
	return s.results[i].text, s.results[i].err
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) Show(_ context.Context, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

var validSettings = map[string]string{
	"flutter.textdb_use_id":  "store-1",
	"flutter.encryption_key": "pw",
}

type harness struct {
	orch    *pipeline.Orchestrator
	pub     *publish.Publisher
	cb      *publish.MemoryClipboard
	notes   *recorder
	metrics *pipeline.Metrics
	health  *pipeline.HealthTracker
	sleeps  *[]time.Duration
}

func newHarness(t *testing.T, s strategy.Strategy, values map[string]string) harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cb := &publish.MemoryClipboard{}
	notes := &recorder{}
	pub := publish.New(cb, notes, publish.WithLogger(logger))
	metrics := pipeline.NewMetrics()
	h, err := pipeline.NewHealthTracker(pipeline.DefaultHealthCooldown)
	require.NoError(t, err)

	var sleeps []time.Duration
	orch, err := pipeline.New(s, settings.NewStaticStore(values), pub,
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
		pipeline.WithHealth(h),
		pipeline.WithRunID(func() string { return "run-1" }),
		pipeline.WithSleep(func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return ctx.Err()
		}),
	)
	require.NoError(t, err)

	return harness{orch: orch, pub: pub, cb: cb, notes: notes, metrics: metrics, health: h, sleeps: &sleeps}
}

func (h harness) run(t *testing.T, ctx context.Context) pipeline.Outcome {
	t.Helper()
	out := h.orch.Run(ctx)
	h.pub.Wait()
	return out
}

func TestRun_SuccessFirstAttempt(t *testing.T) {
	s := &scripted{delay: time.Second, results: []result{{text: "hello world"}}}
	h := newHarness(t, s, validSettings)

	out := h.run(t, context.Background())

	assert.True(t, out.Success())
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "hello world", h.cb.Text())
	assert.Empty(t, *h.sleeps)
	assert.Equal(t, []string{"Cloud clipboard refreshed: hello world"}, h.notes.all())
	assert.Equal(t, settings.Credentials{StoreID: "store-1", Passphrase: "pw"}, s.creds[0])
	assert.NoError(t, out.Err())

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("scripted", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.AttemptsTotal.WithLabelValues("scripted", "ok")), 0)
	assert.True(t, h.health.Snapshot().Available)
	assert.Equal(t, int64(1), h.health.Snapshot().SuccessCount)
}

func TestRun_SucceedsOnThirdAttempt(t *testing.T) {
	netErr := cliperr.New(cliperr.CodeFetchNetworkFailure, "reset")
	s := &scripted{delay: 2 * time.Second, results: []result{{err: netErr}, {err: netErr}, {text: "late"}}}
	h := newHarness(t, s, validSettings)

	out := h.run(t, context.Background())

	assert.True(t, out.Success())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, s.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *h.sleeps)
	assert.Equal(t, "late", h.cb.Text())
	assert.Len(t, h.notes.all(), 1)
}

func TestRun_ExhaustsAfterThreeAttempts(t *testing.T) {
	netErr := cliperr.New(cliperr.CodeFetchNetworkFailure, "connection refused")
	s := &scripted{delay: time.Second, results: []result{{err: netErr}}}
	h := newHarness(t, s, validSettings)

	out := h.run(t, context.Background())

	require.False(t, out.Success())
	assert.Equal(t, pipeline.ReasonExhaustedRetries, out.Reason)
	assert.Equal(t, pipeline.ReasonNetworkError, out.LastReason)
	assert.Equal(t, pipeline.MaxAttempts, s.Calls())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *h.sleeps, "fixed delay, only between attempts")
	assert.Equal(t, 0, h.cb.Writes())

	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Refresh failed after 3 attempts: network connection failed, check your network", notes[0])

	err := out.Err()
	require.Error(t, err)
	assert.Equal(t, cliperr.CodeFetchRetriesExhausted, cliperr.CodeOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	assert.InDelta(t, 1, testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("scripted", "exhausted_retries")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(h.metrics.AttemptsTotal.WithLabelValues("scripted", "network_error")), 0)

	snap := h.health.Snapshot()
	assert.False(t, snap.Available)
	assert.Equal(t, "network_error", snap.LastReason)
	assert.NotNil(t, snap.CooldownUntil)
}

func TestRun_RetriesDeterministicFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason pipeline.Reason
	}{
		{"format error", cliperr.New(cliperr.CodeDecodePayloadInvalid, "bad"), pipeline.ReasonFormatError},
		{"decrypt error", cliperr.New(cliperr.CodeDecryptFailure, "bad padding"), pipeline.ReasonDecryptError},
		{"overloaded", cliperr.New(cliperr.CodeRemoteServerOverloaded, "busy"), pipeline.ReasonServerOverloaded},
		{"expired", cliperr.New(cliperr.CodeRemoteCredentialExpired, "expired"), pipeline.ReasonCredentialExpired},
		{"http", cliperr.New(cliperr.CodeFetchHTTPFailure, "503"), pipeline.ReasonHTTPError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{results: []result{{err: tt.err}}}
			h := newHarness(t, s, validSettings)

			out := h.run(t, context.Background())
			assert.Equal(t, pipeline.ReasonExhaustedRetries, out.Reason)
			assert.Equal(t, tt.reason, out.LastReason)
			assert.Equal(t, 3, s.Calls())
			assert.Len(t, h.notes.all(), 1)
		})
	}
}

func TestRun_MissingCredentialsMakesNoAttempt(t *testing.T) {
	cases := map[string]map[string]string{
		"no store id":   {"flutter.encryption_key": "pw"},
		"no passphrase": {"textdb_use_id": "store-1"},
		"empty values":  {"flutter.textdb_use_id": "", "flutter.encryption_key": ""},
		"nothing":       {},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			s := &scripted{results: []result{{text: "unused"}}}
			h := newHarness(t, s, values)

			out := h.run(t, context.Background())
			assert.Equal(t, pipeline.ReasonMissingCredentials, out.Reason)
			assert.Zero(t, s.Calls())
			assert.Zero(t, out.Attempts)
			assert.Empty(t, *h.sleeps)

			notes := h.notes.all()
			require.Len(t, notes, 1)
			assert.Contains(t, notes[0], "not set")
			assert.True(t, cliperr.HasCode(out.Err(), cliperr.CodeFetchCredentialsMissing))
			assert.Equal(t, int64(0), h.health.Snapshot().FailureCount)
		})
	}
}

func TestRun_ClipboardFailureStillSucceeds(t *testing.T) {
	s := &scripted{results: []result{{text: "content"}}}
	h := newHarness(t, s, validSettings)
	h.cb.Err = errors.New("no display")

	out := h.run(t, context.Background())

	assert.True(t, out.Success())
	assert.Error(t, out.ClipboardErr)
	notes := h.notes.all()
	require.Len(t, notes, 1)
	assert.NotContains(t, notes[0], "refreshed:")
}

func TestRun_LongContentPreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", 25)
	s := &scripted{results: []result{{text: long}}}
	h := newHarness(t, s, validSettings)

	out := h.run(t, context.Background())
	assert.Equal(t, long, h.cb.Text())
	assert.Equal(t, strings.Repeat("x", 20)+"...", out.Preview())
	assert.Equal(t, []string{"Cloud clipboard refreshed: " + strings.Repeat("x", 20) + "..."}, h.notes.all())
}

func TestRun_CancelledBetweenAttempts(t *testing.T) {
	s := &scripted{delay: time.Second, results: []result{{err: cliperr.New(cliperr.CodeFetchNetworkFailure, "down")}}}
	h := newHarness(t, s, validSettings)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := h.run(t, ctx)
	assert.Equal(t, pipeline.ReasonCancelled, out.Reason)
	assert.Equal(t, pipeline.ReasonNetworkError, out.LastReason)
	assert.Equal(t, 1, s.Calls())
	assert.Len(t, h.notes.all(), 1)
}

// cancelOnCall fails every attempt with an HTTP error and cancels the run
// during attempt number cancelAt.
type cancelOnCall struct {
	cancelAt int
	cancel   context.CancelFunc
	calls    int
}

func (c *cancelOnCall) Name() string              { return "cancel-on-call" }
func (c *cancelOnCall) RetryDelay() time.Duration { return time.Second }
func (c *cancelOnCall) Attempt(ctx context.Context, _ settings.Credentials) (string, error) {
	c.calls++
	if c.calls == c.cancelAt {
		c.cancel()
		return "", ctx.Err()
	}
	return "", cliperr.New(cliperr.CodeFetchHTTPFailure, "status 500")
}

func TestRun_CancelledDuringFinalAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &cancelOnCall{cancelAt: pipeline.MaxAttempts, cancel: cancel}
	h := newHarness(t, s, validSettings)

	out := h.run(t, ctx)
	assert.Equal(t, pipeline.ReasonCancelled, out.Reason)
	assert.Equal(t, pipeline.ReasonCancelled, out.LastReason)
	assert.Equal(t, pipeline.MaxAttempts, out.Attempts)
	assert.Equal(t, []string{"Refresh failed: the refresh was cancelled"}, h.notes.all())

	snap := h.health.Snapshot()
	assert.True(t, snap.Available, "cancelled runs do not mark the remote unhealthy")
	assert.Zero(t, snap.FailureCount)
}

func TestRun_CancelledDuringFinalRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == pipeline.MaxAttempts {
			cancel()
			<-r.Context().Done()
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := textdb.New(strategy.Options{Endpoint: srv.URL}, fetch.New(fetch.Config{}, nil))
	require.NoError(t, err)
	h := newHarness(t, s, validSettings)

	out := h.run(t, ctx)
	assert.Equal(t, pipeline.ReasonCancelled, out.Reason)
	assert.Equal(t, int32(pipeline.MaxAttempts), hits.Load())
	assert.Len(t, h.notes.all(), 1)
	assert.True(t, h.health.Snapshot().Available)
}

type panicking struct{}

func (panicking) Name() string              { return "panicky" }
func (panicking) RetryDelay() time.Duration { return 0 }
func (panicking) Attempt(context.Context, settings.Credentials) (string, error) {
	panic("nil map")
}

func TestRun_StrategyPanicIsContained(t *testing.T) {
	h := newHarness(t, panicking{}, validSettings)

	var out pipeline.Outcome
	require.NotPanics(t, func() { out = h.run(t, context.Background()) })
	assert.Equal(t, pipeline.ReasonExhaustedRetries, out.Reason)
	assert.Equal(t, pipeline.ReasonInternal, out.LastReason)
}

func TestRun_ConcurrentRunsAreIndependent(t *testing.T) {
	s := &scripted{results: []result{{text: "same"}}}
	h := newHarness(t, s, validSettings)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.orch.Run(context.Background())
		}()
	}
	wg.Wait()
	h.pub.Wait()

	assert.Equal(t, 8, s.Calls())
	assert.Len(t, h.notes.all(), 8)
	assert.Equal(t, "same", h.cb.Text())
}

func TestNew_RequiresCollaborators(t *testing.T) {
	pub := publish.New(nil, nil)
	store := settings.NewStaticStore(nil)
	s := &scripted{}

	_, err := pipeline.New(nil, store, pub)
	assert.Error(t, err)
	_, err = pipeline.New(s, nil, pub)
	assert.Error(t, err)
	_, err = pipeline.New(s, store, nil)
	assert.Error(t, err)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, pipeline.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pipeline.Sleep(ctx, time.Hour), context.Canceled)
}

// End to end against a local text store: every request fails, so exactly
// three requests are made.
func TestRun_TextDBExhaustsAgainstFailingServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s, err := textdb.New(strategy.Options{Endpoint: srv.URL}, fetch.New(fetch.Config{}, nil))
	require.NoError(t, err)
	h := newHarness(t, s, validSettings)

	out := h.run(t, context.Background())
	assert.Equal(t, pipeline.ReasonExhaustedRetries, out.Reason)
	assert.Equal(t, pipeline.ReasonHTTPError, out.LastReason)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{textdb.DefaultRetryDelay, textdb.DefaultRetryDelay}, *h.sleeps)
}

func TestRun_TextDBSuccess(t *testing.T) {
	payload, err := crypto.Encrypt("from the text store", "pw")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/store-1", r.URL.Path)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	s, err := textdb.New(strategy.Options{Endpoint: srv.URL}, fetch.New(fetch.Config{}, nil))
	require.NoError(t, err)
	h := newHarness(t, s, validSettings)

	out := h.run(t, context.Background())
	require.True(t, out.Success(), "reason=%s cause=%v", out.Reason, out.Cause)
	assert.Equal(t, "from the text store", h.cb.Text())
}
