package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting Prometheus metrics
// about the effect scheduler and its runners.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.EffectStarted("reaction")
//	defer metrics.EffectDuration("reaction").Observe(time.Since(start).Seconds())
type Metrics struct {
	// EffectsStarted counts effects launched by kind.
	// Labels: kind (reply|reaction|refine|act)
	EffectsStarted *prometheus.CounterVec

	// EffectsCompleted counts effects that finished without error, by kind.
	EffectsCompleted *prometheus.CounterVec

	// EffectsCancelled counts effects cancelled before completion, by kind.
	EffectsCancelled *prometheus.CounterVec

	// EffectsFailed counts effects that reported effect-failed, by kind.
	EffectsFailed *prometheus.CounterVec

	// EffectDurationSeconds measures effect runtime from launch to terminal
	// notification (completed, cancelled, or failed), by kind.
	EffectDurationSeconds *prometheus.HistogramVec

	// RunningEffects is a gauge of effects currently in flight, by kind.
	RunningEffects *prometheus.GaugeVec

	// TransitionsTotal counts signals applied by the transition, by signal
	// type and outcome (applied|dropped).
	TransitionsTotal *prometheus.CounterVec

	// PersistenceCommits counts commit attempts, by outcome (success|error).
	PersistenceCommits *prometheus.CounterVec

	// PersistenceCommitDuration measures commit latency.
	PersistenceCommitDuration prometheus.Histogram

	// BackoffDelaySeconds records the delay chosen for a failing effect key.
	BackoffDelaySeconds *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics with the default
// registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		EffectsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_effects_started_total",
				Help: "Total number of effects launched by kind",
			},
			[]string{"kind"},
		),
		EffectsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_effects_completed_total",
				Help: "Total number of effects that completed without error",
			},
			[]string{"kind"},
		),
		EffectsCancelled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_effects_cancelled_total",
				Help: "Total number of effects cancelled before completion",
			},
			[]string{"kind"},
		),
		EffectsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_effects_failed_total",
				Help: "Total number of effects that reported a failure",
			},
			[]string{"kind"},
		),
		EffectDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reactor_effect_duration_seconds",
				Help:    "Duration from effect launch to its terminal notification",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		RunningEffects: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "reactor_running_effects",
				Help: "Current number of effects in flight by kind",
			},
			[]string{"kind"},
		),
		TransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_transitions_total",
				Help: "Total number of signals processed by the transition",
			},
			[]string{"signal", "outcome"},
		),
		PersistenceCommits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reactor_persistence_commits_total",
				Help: "Total number of persistence commit attempts by outcome",
			},
			[]string{"outcome"},
		),
		PersistenceCommitDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reactor_persistence_commit_duration_seconds",
				Help:    "Duration of persistence commit calls",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		BackoffDelaySeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reactor_backoff_delay_seconds",
				Help:    "Delay chosen by the keyed backoff tracker for a failing effect",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
	}
}

// EffectStarted increments the started counter and running gauge for kind.
func (m *Metrics) EffectStarted(kind string) {
	m.EffectsStarted.WithLabelValues(kind).Inc()
	m.RunningEffects.WithLabelValues(kind).Inc()
}

// EffectCompleted records a successful terminal notification for kind.
func (m *Metrics) EffectCompleted(kind string, duration time.Duration) {
	m.EffectsCompleted.WithLabelValues(kind).Inc()
	m.RunningEffects.WithLabelValues(kind).Dec()
	m.EffectDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// EffectCancelled records a cancellation for kind.
func (m *Metrics) EffectCancelled(kind string, duration time.Duration) {
	m.EffectsCancelled.WithLabelValues(kind).Inc()
	m.RunningEffects.WithLabelValues(kind).Dec()
	m.EffectDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// EffectFailed records a failure for kind.
func (m *Metrics) EffectFailed(kind string, duration time.Duration) {
	m.EffectsFailed.WithLabelValues(kind).Inc()
	m.RunningEffects.WithLabelValues(kind).Dec()
	m.EffectDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// Transition records the outcome of applying one signal.
func (m *Metrics) Transition(signal, outcome string) {
	m.TransitionsTotal.WithLabelValues(signal, outcome).Inc()
}

// PersistenceCommit records a commit attempt and its latency.
func (m *Metrics) PersistenceCommit(success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.PersistenceCommits.WithLabelValues(outcome).Inc()
	m.PersistenceCommitDuration.Observe(duration.Seconds())
}

// BackoffDelay records the delay chosen for a failing effect key of kind.
func (m *Metrics) BackoffDelay(kind string, delay time.Duration) {
	m.BackoffDelaySeconds.WithLabelValues(kind).Observe(delay.Seconds())
}
