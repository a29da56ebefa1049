// Package metrics exposes Prometheus metrics for the enforcer.
//
// A nil *Metrics, or one built with Enabled unset, records nothing, so
// components take one unconditionally.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "regenforce"

// Config selects whether metrics are collected and where they are served.
type Config struct {
	Enabled bool
	Addr    string
}

// Metrics holds the collectors on a private registry.
type Metrics struct {
	config Config

	// Evaluation metrics
	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	entries            *prometheus.GaugeVec
	changes            prometheus.Counter

	// Watcher metrics
	batches          *prometheus.CounterVec
	listeners        prometheus.Gauge
	listenerFailures prometheus.Counter

	// Enforcement metrics
	enforcements *prometheus.CounterVec

	// Policy metrics
	reloads *prometheus.CounterVec

	registry *prometheus.Registry
}

// New builds the collectors when cfg.Enabled is set.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "evaluations_total",
				Help:      "Entries evaluated against the store, by trigger.",
			},
			[]string{"source"},
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one evaluation pass in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "entries",
				Help:      "Entries by status after the last full evaluation.",
			},
			[]string{"status"},
		),
		changes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "changes_total",
				Help:      "Observations that differed from the previous one.",
			},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "batches_total",
				Help:      "Drift batches handed to the consumer, by trigger.",
			},
			[]string{"source"},
		),
		listeners: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "listeners_waiting",
				Help:      "Change listeners currently blocked on a native wait.",
			},
		),
		listenerFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "listener_failures_total",
				Help:      "Change listeners stopped by a native wait failure.",
			},
		),
		enforcements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "enforcements_total",
				Help:      "Corrective writes, by outcome.",
			},
			[]string{"outcome"},
		),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "policy_reloads_total",
				Help:      "Policy folder reloads, by result.",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.evaluations,
		m.evaluationDuration,
		m.entries,
		m.changes,
		m.batches,
		m.listeners,
		m.listenerFailures,
		m.enforcements,
		m.reloads,
	)
	return m
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordEvaluation counts n entries evaluated in one pass.
func (m *Metrics) RecordEvaluation(source string, n int, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.evaluations.WithLabelValues(source).Add(float64(n))
	m.evaluationDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// SetEntries publishes the status counts of a full evaluation.
func (m *Metrics) SetEntries(matched, drifted, missing int) {
	if !m.enabled() {
		return
	}
	m.entries.WithLabelValues("matched").Set(float64(matched))
	m.entries.WithLabelValues("drifted").Set(float64(drifted))
	m.entries.WithLabelValues("missing").Set(float64(missing))
}

// RecordChanges counts observations that changed.
func (m *Metrics) RecordChanges(n int) {
	if !m.enabled() || n == 0 {
		return
	}
	m.changes.Add(float64(n))
}

// RecordBatch counts a delivered batch.
func (m *Metrics) RecordBatch(source string) {
	if !m.enabled() {
		return
	}
	m.batches.WithLabelValues(source).Inc()
}

// ListenerStarted counts a listener entering its wait loop.
func (m *Metrics) ListenerStarted() {
	if !m.enabled() {
		return
	}
	m.listeners.Inc()
}

// ListenerStopped counts a listener leaving its loop; failed marks a native
// wait failure rather than a requested stop.
func (m *Metrics) ListenerStopped(failed bool) {
	if !m.enabled() {
		return
	}
	m.listeners.Dec()
	if failed {
		m.listenerFailures.Inc()
	}
}

// RecordEnforcement counts one corrective write.
func (m *Metrics) RecordEnforcement(outcome string) {
	if !m.enabled() {
		return
	}
	m.enforcements.WithLabelValues(outcome).Inc()
}

// RecordReload counts one policy reload.
func (m *Metrics) RecordReload(ok bool) {
	if !m.enabled() {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.reloads.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if !m.enabled() {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve exposes /metrics on the configured address until ctx is done.
func (m *Metrics) Serve(ctx context.Context) error {
	if !m.enabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              m.config.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- server.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
