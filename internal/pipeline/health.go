// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package pipeline

import (
	"sync"
	"time"

	cliperr "github.com/Z-zoe8013/ZTOOLBOX/pkg/errors"
	"github.com/Z-zoe8013/ZTOOLBOX/pkg/health"
)

// DefaultHealthCooldown is how long a strategy's remote is reported as
// unavailable after a failed run.
const DefaultHealthCooldown = 30 * time.Second

// HealthTracker records the health of the remote behind a strategy.
// The remote is considered available until a run fails, and again once the
// cooldown has passed or a run succeeds.
type HealthTracker struct {
	mu           sync.RWMutex
	healthy      bool
	failedAt     time.Time
	succeededAt  time.Time
	lastReason   Reason
	cooldown     time.Duration
	failureCount int64
	successCount int64
	nowFunc      func() time.Time // for testing
}

// NewHealthTracker creates a HealthTracker that starts healthy.
func NewHealthTracker(cooldown time.Duration) (*HealthTracker, error) {
	if cooldown <= 0 {
		return nil, cliperr.Errorf(cliperr.CodeConfigValidateInvalidValue,
			"health tracker cooldown must be positive, got %s", cooldown)
	}
	return &HealthTracker{
		healthy:  true,
		cooldown: cooldown,
		nowFunc:  time.Now,
	}, nil
}

// isHealthyLocked reports whether the remote is healthy or the cooldown
// has elapsed. The caller MUST hold at least h.mu.RLock.
func (h *HealthTracker) isHealthyLocked() bool {
	if h.healthy {
		return true
	}
	return h.nowFunc().Sub(h.failedAt) >= h.cooldown
}

// IsHealthy returns true if the remote is healthy or the cooldown has elapsed.
func (h *HealthTracker) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked()
}

// RecordSuccess marks the remote as healthy.
func (h *HealthTracker) RecordSuccess() {
	h.mu.Lock()
	h.healthy = true
	h.succeededAt = h.nowFunc()
	h.successCount++
	h.mu.Unlock()
}

// RecordFailure marks the remote as unhealthy.
func (h *HealthTracker) RecordFailure(reason Reason) {
	h.mu.Lock()
	h.healthy = false
	h.failedAt = h.nowFunc()
	h.lastReason = reason
	h.failureCount++
	h.mu.Unlock()
}

// SetNowFunc overrides the time source (for testing).
func (h *HealthTracker) SetNowFunc(fn func() time.Time) {
	h.mu.Lock()
	h.nowFunc = fn
	h.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the tracker's state.
func (h *HealthTracker) Snapshot() health.Metrics {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := health.Metrics{
		FailureCount: h.failureCount,
		SuccessCount: h.successCount,
		LastReason:   string(h.lastReason),
		Available:    h.isHealthyLocked(),
	}
	if h.failureCount > 0 {
		t := h.failedAt
		m.LastFailureAt = &t
	}
	if h.successCount > 0 {
		t := h.succeededAt
		m.LastSuccessAt = &t
	}
	if !h.healthy {
		cooldownEnd := h.failedAt.Add(h.cooldown)
		m.CooldownUntil = &cooldownEnd
	}
	return m
}
