package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder fulfills MetricsRecorder with
// prometheus/client_golang collectors: a duration histogram and a result
// counter per operation, plus a gauge vector for population-level values
// (total mass, group count, mass flow).
type PrometheusMetricsRecorder struct {
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
	gauges    *prometheus.GaugeVec
}

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with reg. Passing a dedicated registry keeps tests isolated;
// production callers typically pass prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer, namespace string) (*PrometheusMetricsRecorder, error) {
	if namespace == "" {
		namespace = "sim"
	}
	r := &PrometheusMetricsRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_results_total",
			Help:      "Engine operation outcomes by status.",
		}, []string{"operation", "status"}),
		gauges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "population_gauge",
			Help:      "Population-level values such as mass, group count and mass flow.",
		}, []string{"name"}),
	}
	for _, c := range []prometheus.Collector{r.durations, r.results, r.gauges} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe records an engine operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// SetGauge records the current value of a population-level gauge.
func (r *PrometheusMetricsRecorder) SetGauge(name string, value float64) {
	if name == "" {
		return
	}
	r.gauges.WithLabelValues(name).Set(value)
}
