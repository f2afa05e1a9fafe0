package metrics

import "github.com/prometheus/client_golang/prometheus"

// PoolMetrics tracks credential pool composition and lifecycle activity.
//
// Metrics:
//   - sparkie_pool_credentials: credentials per state (gauge)
//   - sparkie_pool_usable_capacity: usable capacity as seen by the monitor
//   - sparkie_pool_transitions_total: state transitions by edge
//   - sparkie_pool_replenishments_total: replenishment requests by result
type PoolMetrics struct {
	credentials    *prometheus.GaugeVec
	usableCapacity prometheus.Gauge
	transitions    *prometheus.CounterVec
	replenishments *prometheus.CounterVec
}

// NewPoolMetrics creates and registers pool metrics.
func NewPoolMetrics(namespace string, registry *prometheus.Registry) *PoolMetrics {
	pm := &PoolMetrics{
		credentials: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "credentials",
				Help:      "Number of credentials per lifecycle state",
			},
			[]string{"state"},
		),
		usableCapacity: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "usable_capacity",
				Help:      "Usable pool capacity (active plus soon-recovering cooling credentials)",
			},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "transitions_total",
				Help:      "Credential state transitions by edge",
			},
			[]string{"from", "to"},
		),
		replenishments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pool",
				Name:      "replenishments_total",
				Help:      "Replenishment requests by result (requested, succeeded, failed)",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(pm.credentials, pm.usableCapacity, pm.transitions, pm.replenishments)
	return pm
}

// SetCredentials sets the gauge for one state.
func (pm *PoolMetrics) SetCredentials(state string, count int) {
	if pm == nil {
		return
	}
	pm.credentials.WithLabelValues(state).Set(float64(count))
}

// SetUsableCapacity sets the usable capacity gauge.
func (pm *PoolMetrics) SetUsableCapacity(capacity int) {
	if pm == nil {
		return
	}
	pm.usableCapacity.Set(float64(capacity))
}

// RecordTransition counts one state transition.
func (pm *PoolMetrics) RecordTransition(from, to string) {
	if pm == nil {
		return
	}
	pm.transitions.WithLabelValues(from, to).Inc()
}

// RecordReplenishment counts one replenishment event by result.
func (pm *PoolMetrics) RecordReplenishment(result string) {
	if pm == nil {
		return
	}
	pm.replenishments.WithLabelValues(result).Inc()
}
