package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dray-io/clusterroute/internal/address"
	"github.com/dray-io/clusterroute/internal/cluster"
	"github.com/dray-io/clusterroute/internal/config"
	"github.com/dray-io/clusterroute/internal/fixture"
	"github.com/dray-io/clusterroute/internal/logging"
	"github.com/dray-io/clusterroute/internal/metrics"
)

// loadConfig reads path, or the CLUSTERROUTE_CONFIG file and defaults when
// path is empty.
func loadConfig(path string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	return cfg, nil
}

// newLogger builds the command's logger and installs it as the global one.
func newLogger(cfg *config.Config, out io.Writer) *logging.Logger {
	logger := logging.New(logging.Config{
		Level:     logging.ParseLevel(cfg.Observability.LogLevel),
		Format:    logging.ParseFormat(cfg.Observability.LogFormat),
		Output:    out,
		AddCaller: logging.ParseLevel(cfg.Observability.LogLevel) == logging.LevelDebug,
	})
	logging.SetGlobal(logger)
	return logger
}

func runDiscover(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("discover", `Usage: routectl discover --fixture FILE [options]

Replay a recorded server response through discovery and print the routing table.`, stderr)
	fixturePath := fs.String("fixture", "", "Path to a recorded server response (YAML)")
	configPath := fs.String("config", "", "Path to configuration file")
	format := fs.String("format", "text", "Output format: text or json")
	withMetrics := fs.Bool("metrics", false, "Print discovery metrics in Prometheus text format")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *fixturePath == "" {
		fs.Usage()
		return errUsage
	}
	if *format != "text" && *format != "json" {
		return errors.Newf("unknown format %q", *format)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	conn, err := fixture.Load(*fixturePath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	d := cluster.NewDiscovery(cfg.DiscoveryConfig(newLogger(cfg, stderr), metrics.NewDiscoveryMetricsWithRegistry(reg), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	table, discoverErr := d.Discover(ctx, conn)
	if discoverErr == nil {
		if err := printTable(stdout, table, *format); err != nil {
			return err
		}
	}
	if *withMetrics {
		if err := metrics.WriteText(stdout, reg); err != nil {
			return err
		}
	}
	if discoverErr != nil {
		return errors.Wrapf(discoverErr, "discovery failed (%s)", cluster.ErrorKind(discoverErr))
	}
	return nil
}

type tableOutput struct {
	Routers    []string `json:"routers"`
	Readers    []string `json:"readers"`
	Writers    []string `json:"writers"`
	TTLSeconds int64    `json:"ttlSeconds"`
	ExpiresAt  string   `json:"expiresAt"`
}

func printTable(w io.Writer, table cluster.RoutingTable, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(tableOutput{
			Routers:    addressStrings(table.Routers),
			Readers:    addressStrings(table.Readers),
			Writers:    addressStrings(table.Writers),
			TTLSeconds: int64(table.TTL / time.Second),
			ExpiresAt:  table.ExpiresAt.UTC().Format(time.RFC3339),
		}, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode routing table")
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tADDRESSES")
	fmt.Fprintf(tw, "ROUTE\t%s\n", strings.Join(addressStrings(table.Routers), ","))
	fmt.Fprintf(tw, "READ\t%s\n", strings.Join(addressStrings(table.Readers), ","))
	fmt.Fprintf(tw, "WRITE\t%s\n", strings.Join(addressStrings(table.Writers), ","))
	tw.Flush()
	fmt.Fprintf(w, "ttl %s, expires %s\n", table.TTL, table.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

func addressStrings(addrs []address.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func runWatch(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("watch", `Usage: routectl watch --fixture FILE [options]

Keep a routing table fresh against a recorded server response, rediscovering
whenever it goes stale, and serve discovery metrics until interrupted.`, stderr)
	fixturePath := fs.String("fixture", "", "Path to a recorded server response (YAML)")
	configPath := fs.String("config", "", "Path to configuration file")
	interval := fs.Duration("interval", time.Second, "How often to check the table for staleness")
	mode := fs.String("mode", "read", "Access mode the table must serve: read or write")
	metricsAddr := fs.String("metrics-addr", "", "Override metrics listen address (e.g., :9090)")

	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *fixturePath == "" {
		fs.Usage()
		return errUsage
	}
	if *interval <= 0 {
		return errors.Newf("interval must be positive, got %s", *interval)
	}
	accessMode, err := parseAccessMode(*mode)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	conn, err := fixture.Load(*fixturePath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, stderr)
	reg := prometheus.NewRegistry()
	d := cluster.NewDiscovery(cfg.DiscoveryConfig(logger, metrics.NewDiscoveryMetricsWithRegistry(reg), nil))

	srv := metrics.NewServerWithRegistry(cfg.Observability.MetricsAddr, reg).WithLogger(logger)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Close()
	fmt.Fprintf(stdout, "serving metrics on http://%s%s\n", srv.Addr(), metrics.MetricsPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watch(ctx, cluster.NewRefresher(d, accessMode), conn, *interval, logger)
}

// watch checks the table every interval until ctx is done. Discovery
// failures are logged and retried on the next tick.
func watch(ctx context.Context, r *cluster.Refresher, conn cluster.Connection, interval time.Duration, logger *logging.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := r.Table(ctx, conn); err != nil && ctx.Err() == nil {
			logger.Warnf("routing table refresh failed", map[string]any{
				"kind":  cluster.ErrorKind(err),
				"error": err.Error(),
			})
		}

		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func parseAccessMode(s string) (cluster.AccessMode, error) {
	switch s {
	case "read":
		return cluster.AccessModeRead, nil
	case "write":
		return cluster.AccessModeWrite, nil
	default:
		return 0, errors.Newf("unknown access mode %q", s)
	}
}
