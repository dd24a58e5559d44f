package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// APIRequests counts outbound LeadConnector API calls by endpoint and status
	APIRequests *prometheus.CounterVec
	// APILatency tracks outbound call latency by endpoint
	APILatency *prometheus.HistogramVec
	// PipelineRuns counts pipeline runs by final status
	PipelineRuns *prometheus.CounterVec
	// StageFailures counts stage-level failures by stage name
	StageFailures *prometheus.CounterVec
	// PublishOps counts custom-value writes by operation (create/update) and status
	PublishOps *prometheus.CounterVec
	// LocationTokenErrors counts per-location token exchange failures
	LocationTokenErrors prometheus.Counter
	// HTTPRequestsTotal counts serve-mode HTTP requests
	HTTPRequestsTotal *prometheus.CounterVec
	// RateLimitRemaining tracks the remote quota left per window
	RateLimitRemaining *prometheus.GaugeVec
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		APIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total outbound API requests",
			},
			[]string{"endpoint", "method", "status"},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_latency_seconds",
				Help:      "Outbound API request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0, 30.0},
			},
			[]string{"endpoint"},
		),
		PipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Total pipeline runs by final status",
			},
			[]string{"status"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_failures_total",
				Help:      "Total stage failures by stage",
			},
			[]string{"stage"},
		),
		PublishOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "publish_operations_total",
				Help:      "Total custom value writes by operation",
			},
			[]string{"operation", "status"},
		),
		LocationTokenErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_token_errors_total",
				Help:      "Total per-location token exchange failures",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests served",
			},
			[]string{"endpoint", "method", "status"},
		),
		RateLimitRemaining: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ratelimit_remaining",
				Help:      "Remaining remote API quota by window",
			},
			[]string{"window"},
		),
	}

	registry.MustRegister(
		m.APIRequests,
		m.APILatency,
		m.PipelineRuns,
		m.StageFailures,
		m.PublishOps,
		m.LocationTokenErrors,
		m.HTTPRequestsTotal,
		m.RateLimitRemaining,
	)

	return m
}

// Handler returns an HTTP handler exposing this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAPIRequest records one outbound API call. Nil-safe so callers can
// run without metrics wired.
func (m *Metrics) RecordAPIRequest(endpoint, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(endpoint, method, status).Inc()
	m.APILatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordPipelineRun records a finished pipeline run.
func (m *Metrics) RecordPipelineRun(status string) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(status).Inc()
}

// RecordStageFailure records a failed stage.
func (m *Metrics) RecordStageFailure(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// RecordPublish records a custom-value write.
func (m *Metrics) RecordPublish(operation, status string) {
	if m == nil {
		return
	}
	m.PublishOps.WithLabelValues(operation, status).Inc()
}

// RecordLocationTokenError records one per-location exchange failure.
func (m *Metrics) RecordLocationTokenError() {
	if m == nil {
		return
	}
	m.LocationTokenErrors.Inc()
}

// RecordRateLimit records the remaining remote quota for a window.
func (m *Metrics) RecordRateLimit(window string, remaining int64) {
	if m == nil {
		return
	}
	m.RateLimitRemaining.WithLabelValues(window).Set(float64(remaining))
}

// RecordHTTPRequest records one serve-mode request.
func (m *Metrics) RecordHTTPRequest(endpoint, method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}
