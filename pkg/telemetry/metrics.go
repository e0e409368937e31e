package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rafaelcathomen/ubuntu-setup/pkg/engine"
)

// Metrics collects Prometheus metrics for the engine. A disabled
// Metrics value is a no-op; every recording method tolerates nil
// collectors so call sites never need to branch on Enabled.
type Metrics struct {
	config MetricsConfig

	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	retries        prometheus.Counter

	probes *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of run execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of actions executed",
			},
			[]string{"verb", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of action execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"verb"},
		),
		retries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_retries_total",
				Help:      "Total number of retried apply attempts",
			},
		),
		probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "probes_total",
				Help:      "Total number of resource probes",
			},
			[]string{"present"},
		),
	}

	registry.MustRegister(
		m.runsCompleted,
		m.runDuration,
		m.actions,
		m.actionDuration,
		m.retries,
		m.probes,
	)

	return m
}

// OnRecord implements engine.Observer. Each execution record counts
// one action and any retries beyond the first attempt.
func (m *Metrics) OnRecord(rec engine.ExecutionRecord) {
	if m.actions == nil {
		return
	}
	m.actions.WithLabelValues(string(rec.Verb), string(rec.Outcome)).Inc()
	m.actionDuration.WithLabelValues(string(rec.Verb)).Observe(rec.Duration.Seconds())
	if rec.Attempts > 1 {
		m.retries.Add(float64(rec.Attempts - 1))
	}
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(status engine.RunStatus, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(string(status)).Inc()
	m.runDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// RecordProbe records the outcome of a single resource probe.
func (m *Metrics) RecordProbe(present bool) {
	if m.probes == nil {
		return
	}
	value := "false"
	if present {
		value = "true"
	}
	m.probes.WithLabelValues(value).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve starts an HTTP server exposing /metrics on the configured
// listen address. It returns immediately; errors after startup are
// logged, not fatal.
func (m *Metrics) Serve(logger zerolog.Logger) {
	if !m.config.Enabled || m.config.Listen == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              m.config.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Str("listen", m.config.Listen).Msg("metrics server stopped")
		}
	}()
}
