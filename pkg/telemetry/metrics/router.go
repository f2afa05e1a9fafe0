package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics tracks request handling and outcome classification.
//
// Metrics:
//   - sparkie_router_requests_total: handled requests by result
//   - sparkie_router_attempts: dispatch attempts per request (histogram)
//   - sparkie_router_classifications_total: classified outcomes by kind
//   - sparkie_router_dispatch_seconds: upstream dispatch latency
type RouterMetrics struct {
	requests        *prometheus.CounterVec
	attempts        prometheus.Histogram
	classifications *prometheus.CounterVec
	dispatchSeconds prometheus.Histogram
}

// NewRouterMetrics creates and registers router metrics.
func NewRouterMetrics(namespace string, registry *prometheus.Registry) *RouterMetrics {
	rm := &RouterMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "requests_total",
				Help:      "Handled requests by result (success, unavailable, retries_exhausted, cancelled)",
			},
			[]string{"result"},
		),
		attempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "attempts",
				Help:      "Dispatch attempts per handled request",
				Buckets:   []float64{1, 2, 3, 4, 5, 8, 13},
			},
		),
		classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "classifications_total",
				Help:      "Classified dispatch outcomes by kind",
			},
			[]string{"outcome"},
		),
		dispatchSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "dispatch_seconds",
				Help:      "Upstream dispatch latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(rm.requests, rm.attempts, rm.classifications, rm.dispatchSeconds)
	return rm
}

// RecordRequest counts one handled request by result and its attempt count.
func (rm *RouterMetrics) RecordRequest(result string, attempts int) {
	if rm == nil {
		return
	}
	rm.requests.WithLabelValues(result).Inc()
	rm.attempts.Observe(float64(attempts))
}

// RecordClassification counts one classified outcome.
func (rm *RouterMetrics) RecordClassification(outcome string) {
	if rm == nil {
		return
	}
	rm.classifications.WithLabelValues(outcome).Inc()
}

// RecordDispatch observes one upstream dispatch latency.
func (rm *RouterMetrics) RecordDispatch(latency time.Duration) {
	if rm == nil {
		return
	}
	rm.dispatchSeconds.Observe(latency.Seconds())
}
