// Package telemetry exposes the engine's counters and gauges to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reflex"

// #region metrics
// Metrics is one engine's collector set, registered on the registerer it is given.
type Metrics struct {
	Ticks           prometheus.Counter
	StimuliApplied  prometheus.Counter
	StimuliDropped  prometheus.Counter
	OutOfRange      prometheus.Counter
	UnknownKind     prometheus.Counter
	FailSafes       prometheus.Counter
	Startles        prometheus.Counter
	ModeTransitions *prometheus.CounterVec
	ProfileSwitches *prometheus.CounterVec
	Scalar          *prometheus.GaugeVec
	Mode            *prometheus.GaugeVec
	TickDuration    prometheus.Histogram
}

// New registers the collectors on reg. A nil reg uses a private registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Ticks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Ticks completed by the engine",
		}),
		StimuliApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stimulus", Name: "applied_total",
			Help: "Stimuli with non-zero intensity folded into the state",
		}),
		StimuliDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stimulus", Name: "dropped_total",
			Help: "Stimuli evicted from a full queue",
		}),
		OutOfRange: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stimulus", Name: "out_of_range_total",
			Help: "Stimuli whose intensity or valence had to be clamped",
		}),
		UnknownKind: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "stimulus", Name: "unknown_kind_total",
			Help: "Stimuli ignored because their kind has no weights",
		}),
		FailSafes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fail_safe_total",
			Help: "Invariant violations recovered by forcing protect",
		}),
		Startles: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "startles_total",
			Help: "Ticks that took the startle path",
		}),
		ModeTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mode", Name: "transitions_total",
			Help: "Mode changes by source, target and rule",
		}, []string{"from", "to", "rule"}),
		ProfileSwitches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "profile", Name: "switch_events_total",
			Help: "Personality transition events by kind",
		}, []string{"event"}),
		Scalar: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scalar",
			Help: "Current value of each affective scalar",
		}, []string{"scalar"}),
		Mode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "mode", Name: "current",
			Help: "1 for the current mode, 0 otherwise",
		}, []string{"mode"}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_duration_seconds",
			Help:    "Wall time spent computing one tick",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
	}
}

// #endregion metrics

// #region observe
// ObserveScalars sets the scalar gauges.
func (m *Metrics) ObserveScalars(tension, energy, coherence, curiosity float64) {
	m.Scalar.WithLabelValues("tension").Set(tension)
	m.Scalar.WithLabelValues("energy").Set(energy)
	m.Scalar.WithLabelValues("coherence").Set(coherence)
	m.Scalar.WithLabelValues("curiosity").Set(curiosity)
}

// ObserveMode flips the mode gauge to current.
func (m *Metrics) ObserveMode(current string, all []string) {
	for _, name := range all {
		v := 0.0
		if name == current {
			v = 1
		}
		m.Mode.WithLabelValues(name).Set(v)
	}
}

// ObserveTick records one tick's duration.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

// #endregion observe
