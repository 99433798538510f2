// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package server

import (
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
)

// RateLimitConfig configures per-client limiting of trigger requests. Each
// refresh fans out to the remote store, so a misbehaving local script should
// not be able to hammer it through this server.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per client IP. Zero disables limiting.
	RequestsPerSecond float64
	// Burst is the maximum burst size per client IP.
	Burst int
	// MaxClients caps the number of tracked IPs. Default: 1024.
	MaxClients int
}

// Validate checks that the RateLimitConfig is valid and applies defaults.
func (c *RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return cliperr.Errorf(cliperr.CodeServerConfigInvalid,
			"rate limit requests per second must not be negative (got %g)", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst <= 0 {
		return cliperr.Errorf(cliperr.CodeServerConfigInvalid,
			"rate limit burst must be positive when rate is set (got burst=%d, rate=%g)",
			c.Burst, c.RequestsPerSecond)
	}
	if c.MaxClients < 0 {
		return cliperr.Errorf(cliperr.CodeServerConfigInvalid,
			"rate limit max clients must not be negative (got %d)", c.MaxClients)
	}
	if c.MaxClients == 0 {
		c.MaxClients = 1024
	}
	return nil
}

type bucket struct {
	tokens     float64
	lastSeen   time.Time
	lastRefill time.Time
}

type limiter struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	clients map[string]*bucket
	now     func() time.Time
	logger  *slog.Logger
}

// allow takes a token for ip, refilling the bucket for elapsed time first.
func (l *limiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[ip]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst), lastRefill: now}
		l.clients[ip] = b
	}
	b.lastSeen = now

	b.tokens += now.Sub(b.lastRefill).Seconds() * l.cfg.RequestsPerSecond
	if b.tokens > float64(l.cfg.Burst) {
		b.tokens = float64(l.cfg.Burst)
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops idle clients and enforces MaxClients, oldest first.
func (l *limiter) sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	type entry struct {
		ip       string
		lastSeen time.Time
	}
	entries := make([]entry, 0, len(l.clients))
	for ip, b := range l.clients {
		if now.Sub(b.lastSeen) > idle {
			delete(l.clients, ip)
			continue
		}
		entries = append(entries, entry{ip: ip, lastSeen: b.lastSeen})
	}

	if l.cfg.MaxClients > 0 && len(entries) > l.cfg.MaxClients {
		slices.SortFunc(entries, func(a, b entry) int { return a.lastSeen.Compare(b.lastSeen) })
		evict := len(entries) - l.cfg.MaxClients
		for _, e := range entries[:evict] {
			delete(l.clients, e.ip)
		}
		l.logger.Warn("rate limiter client cap enforced", "evicted", evict, "max_clients", l.cfg.MaxClients)
	}
}

// rateLimitMiddleware returns middleware that enforces per-IP rate limits.
// Returns a pass-through middleware when cfg.RequestsPerSecond is zero.
// The done channel stops the sweeper goroutine.
func rateLimitMiddleware(cfg RateLimitConfig, logger *slog.Logger, done <-chan struct{}) func(http.Handler) http.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	l := &limiter{cfg: cfg, clients: make(map[string]*bucket), now: time.Now, logger: logger}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.sweep(10 * time.Minute)
			case <-done:
				return
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Limit by IP, not by connection.
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !l.allow(ip) {
				logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
