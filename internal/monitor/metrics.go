package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the judge. A nil *Metrics is
// valid and records nothing, so library callers need not wire a registry.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	CasesTotal       *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	PollAttempts     prometheus.Histogram
	ActiveRuns       prometheus.Gauge
	SecurityEvents   *prometheus.CounterVec
	RequestsInFlight prometheus.Gauge
	CodeSizeBytes    prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics using a dedicated registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "judge",
				Name:      "runs_total",
				Help:      "Total validation runs by language, backend and outcome.",
			},
			[]string{"language", "backend", "outcome"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "judge",
				Name:      "run_duration_seconds",
				Help:      "Wall-clock duration of validation runs in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"backend"},
		),

		CasesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "judge",
				Name:      "test_cases_total",
				Help:      "Total executed test cases by language and outcome.",
			},
			[]string{"language", "outcome"},
		),

		ProviderErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "judge",
				Subsystem: "provider",
				Name:      "errors_total",
				Help:      "Sandbox provider failures by operation (submit, retrieve, timeout).",
			},
			[]string{"op"},
		),

		PollAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "judge",
				Subsystem: "provider",
				Name:      "poll_attempts",
				Help:      "Retrieval calls needed before a final status.",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 30},
			},
		),

		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "judge",
				Name:      "active_runs",
				Help:      "Number of validation runs currently in progress.",
			},
		),

		SecurityEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "judge",
				Name:      "security_events_total",
				Help:      "Suspicious code patterns flagged before submission.",
			},
			[]string{"type"},
		),

		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "judge",
				Subsystem: "api",
				Name:      "requests_in_flight",
				Help:      "Number of HTTP requests currently being processed.",
			},
		),

		CodeSizeBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "judge",
				Name:      "code_size_bytes",
				Help:      "Size of submitted code in bytes.",
				Buckets:   prometheus.ExponentialBuckets(100, 4, 8),
			},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.CasesTotal,
		m.ProviderErrors,
		m.PollAttempts,
		m.ActiveRuns,
		m.SecurityEvents,
		m.RequestsInFlight,
		m.CodeSizeBytes,
	)

	return m
}

// RecordRun records metrics for a completed validation run.
func (m *Metrics) RecordRun(language, backend, outcome string, durationSec float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(language, backend, outcome).Inc()
	m.RunDuration.WithLabelValues(backend).Observe(durationSec)
}

// RecordCase records the outcome of one test case.
func (m *Metrics) RecordCase(language, outcome string) {
	if m == nil {
		return
	}
	m.CasesTotal.WithLabelValues(language, outcome).Inc()
}

// RecordProviderError records a failed provider call.
func (m *Metrics) RecordProviderError(op string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(op).Inc()
}

// RecordPollAttempts records how many retrieval calls one execution needed.
func (m *Metrics) RecordPollAttempts(n int) {
	if m == nil {
		return
	}
	m.PollAttempts.Observe(float64(n))
}

// RecordSecurityEvent records a security event.
func (m *Metrics) RecordSecurityEvent(eventType string) {
	if m == nil {
		return
	}
	m.SecurityEvents.WithLabelValues(eventType).Inc()
}

// TrackRun increments the active-run gauge and returns the matching decrement.
func (m *Metrics) TrackRun() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveRuns.Inc()
	return m.ActiveRuns.Dec
}
