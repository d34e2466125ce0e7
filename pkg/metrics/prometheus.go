package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	observations *prometheus.CounterVec
	rejects      *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	activeSource *prometheus.GaugeVec
	lastPrice    prometheus.Gauge
	barsSealed   *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		observations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfuse_observations_total",
				Help: "Total number of admitted observations per source",
			},
			[]string{"source"},
		),
		rejects: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfuse_rejects_total",
				Help: "Total number of dropped observations per source and cause",
			},
			[]string{"source", "kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfuse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		activeSource: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tickfuse_active_source",
				Help: "1 for the source currently holding authority, 0 otherwise",
			},
			[]string{"source"},
		),
		lastPrice: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tickfuse_last_canonical_price",
				Help: "Last canonical price",
			},
		),
		barsSealed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfuse_bars_sealed_total",
				Help: "Total number of sealed bars per resolution",
			},
			[]string{"resolution"},
		),
		transitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickfuse_signal_transitions_total",
				Help: "Total number of accepted signal transitions",
			},
			[]string{"from", "to"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tickfuse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordObservation records an admitted observation.
func (r *Recorder) RecordObservation(source string) {
	r.observations.WithLabelValues(source).Inc()
}

// RecordReject records a dropped observation.
func (r *Recorder) RecordReject(source, kind string) {
	r.rejects.WithLabelValues(source, kind).Inc()
}

// RecordActiveSource marks which source holds authority.
func (r *Recorder) RecordActiveSource(source string) {
	for _, s := range []string{"primary", "fallback"} {
		v := 0.0
		if s == source {
			v = 1
		}
		r.activeSource.WithLabelValues(s).Set(v)
	}
}

// RecordLastPrice records the last canonical price.
func (r *Recorder) RecordLastPrice(price float64) {
	r.lastPrice.Set(price)
}

// RecordBarSealed records a sealed bar.
func (r *Recorder) RecordBarSealed(resolution string) {
	r.barsSealed.WithLabelValues(resolution).Inc()
}

// RecordTransition records an accepted signal transition.
func (r *Recorder) RecordTransition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records an operation duration.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
