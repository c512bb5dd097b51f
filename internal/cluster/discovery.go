package cluster

import (
	"context"
	"time"

	"github.com/dray-io/clusterroute/internal/logging"
	"github.com/dray-io/clusterroute/internal/version"
	"github.com/google/uuid"
)

// MetricsRecorder is the interface for recording discovery metrics.
// This allows the cluster package to be decoupled from the metrics package.
type MetricsRecorder interface {
	// RecordDiscovery records one discovery call. errorKind is "" on
	// success, otherwise one of the ErrorKind values.
	RecordDiscovery(procedure string, durationSeconds float64, errorKind string)

	// RecordRoutingTable records the size of a freshly parsed table.
	RecordRoutingTable(routers, readers, writers int)
}

// DiscoveryConfig configures a Discovery.
type DiscoveryConfig struct {
	// RoutingContext is sent to servers that accept one. May be nil.
	RoutingContext RoutingContext

	// V2Threshold overrides the first version with the V2 procedure.
	// The zero value keeps the default of 3.2.0.
	V2Threshold version.ServerVersion

	// DefaultPort is used for returned addresses that omit a port.
	DefaultPort int

	// Clock supplies the observation time for table expiry. Defaults to time.Now.
	Clock func() time.Time

	// Logger for discovery events.
	Logger *logging.Logger

	// Metrics is optional.
	Metrics MetricsRecorder
}

// Discovery fetches a routing table from one connected cluster member. It
// never retries; choosing another router is left to the caller.
type Discovery struct {
	runner  *ProcedureRunner
	parser  *RoutingTableParser
	logger  *logging.Logger
	metrics MetricsRecorder
}

// NewDiscovery creates a Discovery from cfg.
func NewDiscovery(cfg DiscoveryConfig) *Discovery {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Discovery{
		runner:  NewProcedureRunner(cfg.RoutingContext, WithV2Threshold(cfg.V2Threshold)),
		parser:  NewRoutingTableParser(WithClock(cfg.Clock), WithDefaultPort(cfg.DefaultPort)),
		logger:  logger.With(map[string]any{"component": "discovery"}),
		metrics: cfg.Metrics,
	}
}

// Runner returns the underlying procedure runner, mainly so callers can
// inspect the last procedure call.
func (d *Discovery) Runner() *ProcedureRunner {
	return d.runner
}

// Discover runs the discovery procedure on conn and parses the result.
// Connection errors are returned unchanged; otherwise the error is
// ErrNoRoutingServerAvailable or a *ProtocolError.
func (d *Discovery) Discover(ctx context.Context, conn Connection) (RoutingTable, error) {
	logger := logging.ContextLogger(ctx, d.logger)
	if logger.CorrelationID() == "" {
		logger = logger.WithCorrelationID(uuid.NewString())
	}

	start := time.Now()
	call, records, err := d.runner.run(ctx, conn)
	logger.Debugf("discovery procedure selected", map[string]any{
		"serverVersion": conn.ServerVersion().String(),
		"procedure":     call.Name(),
		"parameters":    formatValue(call.Parameters),
	})

	var table RoutingTable
	if err == nil {
		table, err = d.parser.Parse(records, call.Shape())
	}
	elapsed := time.Since(start)

	kind := ErrorKind(err)
	if d.metrics != nil {
		d.metrics.RecordDiscovery(call.Name(), elapsed.Seconds(), kind)
	}

	if err != nil {
		logger.Warnf("discovery failed", map[string]any{
			"procedure": call.Name(),
			"kind":      kind,
			"records":   len(records),
			"error":     err.Error(),
		})
		return RoutingTable{}, err
	}

	if d.metrics != nil {
		d.metrics.RecordRoutingTable(len(table.Routers), len(table.Readers), len(table.Writers))
	}
	logger.Infof("routing table discovered", map[string]any{
		"procedure": call.Name(),
		"routers":   len(table.Routers),
		"readers":   len(table.Readers),
		"writers":   len(table.Writers),
		"ttl":       table.TTL.String(),
		"expiresAt": table.ExpiresAt.UTC().Format(time.RFC3339),
	})
	return table, nil
}
