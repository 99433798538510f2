// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ZToolbox Contributors

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors for refresh runs.
// Uses its own registry so tests and embedders share no global state.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal     *prometheus.CounterVec
	AttemptsTotal *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	LastSuccess   *prometheus.GaugeVec
}

// NewMetrics creates Metrics registered on a fresh registry, together with
// the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudclip",
			Name:      "runs_total",
			Help:      "Total refresh runs by terminal outcome.",
		}, []string{"strategy", "outcome"}),

		AttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cloudclip",
			Name:      "attempts_total",
			Help:      "Total fetch attempts by result.",
		}, []string{"strategy", "result"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cloudclip",
			Name:      "run_duration_seconds",
			Help:      "Refresh run duration in seconds, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"strategy"}),

		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cloudclip",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}, []string{"strategy"}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.AttemptsTotal,
		m.RunDuration,
		m.LastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) observeAttempt(strategy string, reason Reason) {
	if m == nil {
		return
	}
	result := "ok"
	if reason != ReasonNone {
		result = string(reason)
	}
	m.AttemptsTotal.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) observeRun(o Outcome) {
	if m == nil {
		return
	}
	outcome := "success"
	if !o.Success() {
		outcome = string(o.Reason)
	}
	m.RunsTotal.WithLabelValues(o.Strategy, outcome).Inc()
	m.RunDuration.WithLabelValues(o.Strategy).Observe(o.Duration.Seconds())
	if o.Success() {
		m.LastSuccess.WithLabelValues(o.Strategy).Set(float64(o.StartedAt.Add(o.Duration).Unix()))
	}
}
