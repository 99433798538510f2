// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package server

import (
	"log/slog"
	"net/http"
	"time"
)

// RateLimitMiddleware exposes rateLimitMiddleware to external tests.
func RateLimitMiddleware(cfg RateLimitConfig, done <-chan struct{}) func(http.Handler) http.Handler {
	return rateLimitMiddleware(cfg, slog.Default(), done)
}

// NewTestLimiter returns a limiter driven by the given clock, plus accessors
// used to exercise sweeping without waiting for the ticker.
func NewTestLimiter(cfg RateLimitConfig, now func() time.Time) (allow func(string) bool, sweep func(time.Duration), size func() int) {
	l := &limiter{cfg: cfg, clients: make(map[string]*bucket), now: now, logger: slog.Default()}
	return l.allow, l.sweep, func() int {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.clients)
	}
}
