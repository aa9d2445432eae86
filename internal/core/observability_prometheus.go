package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsRecorder exports operation metrics through a private
// Prometheus registry so service series stay free of the default Go
// collectors and repeated construction never double-registers.
type PrometheusMetricsRecorder struct {
	registry  *prometheus.Registry
	durations *prometheus.HistogramVec
	results   *prometheus.CounterVec
}

// NewPrometheusMetricsRecorder builds a recorder backed by its own registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	registry := prometheus.NewRegistry()
	auto := promauto.With(registry)
	return &PrometheusMetricsRecorder{
		registry: registry,
		durations: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meetcore",
			Subsystem: "service",
			Name:      "operation_duration_milliseconds",
			Help:      "Service operation duration in milliseconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		results: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meetcore",
			Subsystem: "service",
			Name:      "operation_results_total",
			Help:      "Service operation outcomes by status.",
		}, []string{"operation", "status"}),
	}
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(float64(duration) / float64(time.Millisecond))
	r.results.WithLabelValues(operation, status).Inc()
}

// Registry exposes the private registry for custom exposition setups.
func (r *PrometheusMetricsRecorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler returns an HTTP handler that serves the recorder's registry in the
// Prometheus text exposition format, suitable for mounting at /metrics.
func (r *PrometheusMetricsRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
