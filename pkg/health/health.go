// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package health

import "time"

// Metrics exposes the current health state of a remote endpoint for
// monitoring and operator visibility. All fields are point-in-time snapshots
// safe to serialize to JSON.
type Metrics struct {
	FailureCount  int64      `json:"failure_count"`
	SuccessCount  int64      `json:"success_count"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
	LastReason    string     `json:"last_reason,omitempty"`
	Available     bool       `json:"available"`
}
