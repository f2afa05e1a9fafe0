package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config contains configuration for the metrics collector.
type Config struct {
	// Namespace is the metric name prefix (default: "sparkie").
	Namespace string

	// EnableGoMetrics controls whether Go runtime metrics are exported.
	EnableGoMetrics bool
}

// Collector owns the Prometheus registry and all metric groups.
type Collector struct {
	registry *prometheus.Registry

	// Pool tracks credential pool composition and transitions.
	Pool *PoolMetrics

	// Router tracks request handling and classification outcomes.
	Router *RouterMetrics
}

// NewCollector creates a collector with all metric groups registered.
// If registry is nil, a new one is created.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "sparkie"
	}

	if cfg.EnableGoMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		registry: registry,
		Pool:     NewPoolMetrics(cfg.Namespace, registry),
		Router:   NewRouterMetrics(cfg.Namespace, registry),
	}
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the HTTP handler for the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
