// Package metrics provides Prometheus metrics for routing discovery.
//
// It exposes:
//   - Discovery call counters by procedure and status
//   - Discovery error counters by procedure and error kind
//   - Discovery latency histograms by procedure
//   - Routing table size gauges by role
//
// Metrics can be scraped from a dedicated HTTP server on /metrics, or
// written once in the text exposition format with WriteText.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	discoveryMetrics := metrics.NewDiscoveryMetricsWithRegistry(reg)
//
//	d := cluster.NewDiscovery(cluster.DiscoveryConfig{Metrics: discoveryMetrics})
//
//	srv := metrics.NewServerWithRegistry(":9090", reg)
//	srv.Start()
package metrics
