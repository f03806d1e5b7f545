package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is a Prometheus implementation of the Recorder
// interface backed by its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	chunkSkipCounter *prometheus.CounterVec
	fetchRowCounter  *prometheus.CounterVec
	predictionRuns   prometheus.Counter
	alertsRaised     prometheus.Counter
}

// NewPrometheusRecorder creates a PrometheusRecorder with all counters
// registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	r := &PrometheusRecorder{
		registry: registry,
		chunkSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadcast_fetch_chunk_skip_total",
			Help: "Total monthly fetch chunks skipped due to provider errors.",
		}, []string{"provider"}),
		fetchRowCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loadcast_fetch_rows_total",
			Help: "Total hourly rows fetched per provider.",
		}, []string{"provider"}),
		predictionRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadcast_prediction_runs_total",
			Help: "Total inference pipeline invocations.",
		}),
		alertsRaised: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loadcast_performance_alerts_total",
			Help: "Total model performance alerts raised by the reconciler.",
		}),
	}

	registry.MustRegister(r.chunkSkipCounter)
	registry.MustRegister(r.fetchRowCounter)
	registry.MustRegister(r.predictionRuns)
	registry.MustRegister(r.alertsRaised)
	return r
}

// Registry returns the Prometheus registry for exposition.
func (r *PrometheusRecorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordChunkSkipped(provider string) {
	r.chunkSkipCounter.WithLabelValues(provider).Inc()
}

func (r *PrometheusRecorder) RecordFetch(provider string, rows int) {
	r.fetchRowCounter.WithLabelValues(provider).Add(float64(rows))
}

func (r *PrometheusRecorder) RecordPredictionRun() {
	r.predictionRuns.Inc()
}

func (r *PrometheusRecorder) RecordAlert() {
	r.alertsRaised.Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
