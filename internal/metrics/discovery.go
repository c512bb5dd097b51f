package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric exported by this package.
const Namespace = "clusterroute"

// StatusSuccess is the label value for successful discovery calls.
const StatusSuccess = "success"

// StatusFailure is the label value for failed discovery calls.
const StatusFailure = "failure"

// Role label values for RoutingTableServers.
const (
	RoleRouters = "routers"
	RoleReaders = "readers"
	RoleWriters = "writers"
)

// DefaultDiscoveryLatencyBuckets cover a single procedure round trip, from
// a local server to a slow cross-region router.
var DefaultDiscoveryLatencyBuckets = []float64{
	0.0005, // 0.5ms
	0.001,  // 1ms
	0.005,  // 5ms
	0.01,   // 10ms
	0.025,  // 25ms
	0.05,   // 50ms
	0.1,    // 100ms
	0.25,   // 250ms
	0.5,    // 500ms
	1.0,    // 1s
	5.0,    // 5s
	30.0,   // 30s
}

// DiscoveryMetrics holds metrics for routing-table discovery.
type DiscoveryMetrics struct {
	// RequestsTotal counts discovery calls.
	// Labels: procedure, status (success, failure)
	RequestsTotal *prometheus.CounterVec

	// ErrorsTotal counts failed discovery calls by error kind.
	// Labels: procedure, kind (transport, no_routing_server, protocol)
	ErrorsTotal *prometheus.CounterVec

	// Duration tracks the time from procedure selection to parsed table.
	// Labels: procedure
	Duration *prometheus.HistogramVec

	// RoutingTableServers is the size of the last discovered table per role.
	// Labels: role (routers, readers, writers)
	RoutingTableServers *prometheus.GaugeVec
}

// NewDiscoveryMetrics creates and registers discovery metrics.
// Uses promauto for automatic registration with the default registry.
func NewDiscoveryMetrics() *DiscoveryMetrics {
	return newDiscoveryMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewDiscoveryMetricsWithRegistry creates discovery metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewDiscoveryMetricsWithRegistry(reg prometheus.Registerer) *DiscoveryMetrics {
	return newDiscoveryMetrics(promauto.With(reg))
}

func newDiscoveryMetrics(factory promauto.Factory) *DiscoveryMetrics {
	return &DiscoveryMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "discovery",
				Name:      "requests_total",
				Help:      "Total number of discovery procedure calls, broken down by procedure and status.",
			},
			[]string{"procedure", "status"},
		),
		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "discovery",
				Name:      "errors_total",
				Help:      "Total number of failed discovery calls, broken down by procedure and error kind.",
			},
			[]string{"procedure", "kind"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "discovery",
				Name:      "duration_seconds",
				Help:      "Discovery call duration in seconds, including result parsing.",
				Buckets:   DefaultDiscoveryLatencyBuckets,
			},
			[]string{"procedure"},
		),
		RoutingTableServers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "routing_table",
				Name:      "servers",
				Help:      "Number of servers per role in the most recently discovered routing table.",
			},
			[]string{"role"},
		),
	}
}

// RecordDiscovery records one discovery call. An empty errorKind means success.
func (m *DiscoveryMetrics) RecordDiscovery(procedure string, durationSeconds float64, errorKind string) {
	status := StatusSuccess
	if errorKind != "" {
		status = StatusFailure
		m.ErrorsTotal.WithLabelValues(procedure, errorKind).Inc()
	}
	m.RequestsTotal.WithLabelValues(procedure, status).Inc()
	m.Duration.WithLabelValues(procedure).Observe(durationSeconds)
}

// RecordRoutingTable records the per-role size of a discovered table.
func (m *DiscoveryMetrics) RecordRoutingTable(routers, readers, writers int) {
	m.RoutingTableServers.WithLabelValues(RoleRouters).Set(float64(routers))
	m.RoutingTableServers.WithLabelValues(RoleReaders).Set(float64(readers))
	m.RoutingTableServers.WithLabelValues(RoleWriters).Set(float64(writers))
}
