// Package metrics provides Prometheus metrics for the scoring service:
// request counts, validation failures, score distributions, clamping and
// latency. Metrics are exposed on the /metrics endpoint of the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the scoring service.
type Metrics struct {
	ScoresTotal        prometheus.Counter   // Total companies scored successfully
	ValidationFailures prometheus.Counter   // Inputs rejected by feature derivation
	ACVClamps          prometheus.Counter   // Regressor outputs clamped into the valid range
	CloseScores        prometheus.Histogram // Distribution of close scores
	ScoringLatency     prometheus.Histogram // End-to-end single-item scoring latency
	BatchSize          prometheus.Histogram // Distribution of batch request sizes
	ModelAge           prometheus.Gauge     // Age of the loaded model artifacts in seconds
	HTTPRequests       *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics against a custom registry, keeping tests
// isolated from the global state.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		ScoresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "scores_total",
			Help: "Total number of companies scored successfully",
		}),
		ValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "validation_failures_total",
			Help: "Total number of inputs rejected by validation",
		}),
		ACVClamps: factory.NewCounter(prometheus.CounterOpts{
			Name: "acv_clamps_total",
			Help: "Total number of predicted ACV values clamped into the configured range",
		}),
		CloseScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "close_scores",
			Help:    "Distribution of predicted close scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ScoringLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scoring_latency_seconds",
			Help:    "Single-item scoring latency in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_size",
			Help:    "Distribution of batch request sizes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifacts in seconds",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by endpoint and status",
		}, []string{"endpoint", "status"}),
	}
}

// The methods below satisfy scoring.Metrics so the scorer stays decoupled
// from Prometheus types.

func (m *Metrics) ScoreObserve(score float64) {
	m.ScoresTotal.Inc()
	m.CloseScores.Observe(score)
}

func (m *Metrics) ACVClampInc() { m.ACVClamps.Inc() }

func (m *Metrics) ValidationFailureInc() { m.ValidationFailures.Inc() }

func (m *Metrics) ScoringLatencyObserve(seconds float64) {
	m.ScoringLatency.Observe(seconds)
}

// BatchSizeObserve records the size of an incoming batch request.
func (m *Metrics) BatchSizeObserve(n int) { m.BatchSize.Observe(float64(n)) }

// ModelAgeSet records the age of the loaded artifacts.
func (m *Metrics) ModelAgeSet(seconds float64) { m.ModelAge.Set(seconds) }

// HTTPRequestInc counts one request against an endpoint/status pair.
func (m *Metrics) HTTPRequestInc(endpoint, status string) {
	m.HTTPRequests.WithLabelValues(endpoint, status).Inc()
}
