// Package config provides configuration loading and validation for clusterroute.
// Supports YAML files with environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/dray-io/clusterroute/internal/address"
	"github.com/dray-io/clusterroute/internal/cluster"
	"github.com/dray-io/clusterroute/internal/logging"
	"github.com/dray-io/clusterroute/internal/version"
)

// EnvConfigPath names the environment variable Load reads the config path from.
const EnvConfigPath = "CLUSTERROUTE_CONFIG"

// Config holds all configuration for a discovery client.
type Config struct {
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type DiscoveryConfig struct {
	// RoutingContext is sent to servers that accept one. The env override
	// uses the URI query form "k1=v1&k2=v2".
	RoutingContext map[string]string `yaml:"routingContext" env:"CLUSTERROUTE_ROUTING_CONTEXT"`
	MinV2Version   string            `yaml:"minV2Version" env:"CLUSTERROUTE_MIN_V2_VERSION"`
	DefaultPort    int               `yaml:"defaultPort" env:"CLUSTERROUTE_DEFAULT_PORT"`
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"CLUSTERROUTE_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"CLUSTERROUTE_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"CLUSTERROUTE_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Discovery: DiscoveryConfig{
			MinV2Version: "3.2.0",
			DefaultPort:  address.DefaultPort,
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load reads the file named by CLUSTERROUTE_CONFIG, or starts from the
// defaults when it is unset, then applies environment overrides.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads a YAML file over the defaults, then applies
// environment overrides. Keys missing from the file keep their defaults.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("CLUSTERROUTE_ROUTING_CONTEXT"); ok {
		rc, err := cluster.ParseRoutingContextQuery(v)
		if err != nil {
			return errors.Wrap(err, "invalid CLUSTERROUTE_ROUTING_CONTEXT")
		}
		c.Discovery.RoutingContext = rc
	}
	if v, ok := os.LookupEnv("CLUSTERROUTE_MIN_V2_VERSION"); ok {
		c.Discovery.MinV2Version = v
	}
	if v, ok := os.LookupEnv("CLUSTERROUTE_DEFAULT_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid CLUSTERROUTE_DEFAULT_PORT %q", v)
		}
		c.Discovery.DefaultPort = port
	}
	if v, ok := os.LookupEnv("CLUSTERROUTE_METRICS_ADDR"); ok {
		c.Observability.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("CLUSTERROUTE_LOG_LEVEL"); ok {
		c.Observability.LogLevel = v
	}
	if v, ok := os.LookupEnv("CLUSTERROUTE_LOG_FORMAT"); ok {
		c.Observability.LogFormat = v
	}
	return nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if _, err := version.ParseNumber(c.Discovery.MinV2Version); err != nil {
		return errors.Wrapf(err, "invalid discovery.minV2Version %q", c.Discovery.MinV2Version)
	}
	if c.Discovery.DefaultPort < 1 || c.Discovery.DefaultPort > 65535 {
		return errors.Newf("discovery.defaultPort %d out of range", c.Discovery.DefaultPort)
	}
	for k, v := range c.Discovery.RoutingContext {
		if k == "" || v == "" {
			return errors.Newf("discovery.routingContext has an empty key or value (%q=%q)", k, v)
		}
		if k == "address" {
			return errors.New(`discovery.routingContext key "address" is reserved`)
		}
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("unknown observability.logLevel %q", c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return errors.Newf("unknown observability.logFormat %q", c.Observability.LogFormat)
	}
	return nil
}

// DiscoveryConfig builds the discovery settings for a validated Config.
func (c *Config) DiscoveryConfig(logger *logging.Logger, metrics cluster.MetricsRecorder, clock func() time.Time) cluster.DiscoveryConfig {
	threshold, err := version.ParseNumber(c.Discovery.MinV2Version)
	if err != nil {
		threshold = version.V3_2_0
	}
	return cluster.DiscoveryConfig{
		RoutingContext: cluster.RoutingContext(c.Discovery.RoutingContext),
		V2Threshold:    threshold,
		DefaultPort:    c.Discovery.DefaultPort,
		Clock:          clock,
		Logger:         logger,
		Metrics:        metrics,
	}
}
