// Package config loads the cluster manager's bootstrap configuration
// from YAML, with environment-variable overrides for the ambient
// settings that commonly vary between deployments. Grounded on
// internal/config/config.go's YAML-plus-env-overlay shape and its
// Validate-after-parse pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the top-level YAML document this package parses.
type Config struct {
	Clusters []ClusterConfig `yaml:"clusters"`
	Sds      *SdsConfig      `yaml:"sds,omitempty"`

	LocalZoneName    string `yaml:"local_zone_name,omitempty"`
	LocalClusterName string `yaml:"local_cluster_name,omitempty"`

	OutlierDetection *OutlierConfig `yaml:"outlier_detection,omitempty"`

	WorkerCount int          `yaml:"worker_count"`
	Logging     LoggingConfig `yaml:"logging"`
	Admin       AdminConfig   `yaml:"admin"`
	DNSResolver DNSConfig    `yaml:"dns_resolver"`
}

// ClusterConfig is one "clusters[]" entry.
type ClusterConfig struct {
	Name             string           `yaml:"name"`
	Type             string           `yaml:"type"`
	LBType           string           `yaml:"lb_type,omitempty"`
	Features         []string         `yaml:"features,omitempty"`
	Hosts            []HostConfig     `yaml:"hosts,omitempty"`
	DNSRefreshRateMs int              `yaml:"dns_refresh_rate_ms,omitempty"`
	HealthCheck      *HealthCheckConfig `yaml:"health_check,omitempty"`
	OutlierDetection *OutlierConfig   `yaml:"outlier_detection,omitempty"`
	TLS              *TLSConfig       `yaml:"tls,omitempty"`

	// Sds-only fields, meaningful when Type == "sds".
	SdsBackingCluster string `yaml:"sds_backing_cluster,omitempty"`
	SdsTransport      string `yaml:"sds_transport,omitempty"`
	SdsPath           string `yaml:"sds_path,omitempty"`
	SdsMethod         string `yaml:"sds_method,omitempty"`
	SdsTimeoutMs      int    `yaml:"sds_timeout_ms,omitempty"`
	SdsRefreshRateMs  int    `yaml:"sds_refresh_rate_ms,omitempty"`
}

// HostConfig is one configured host: a literal "host:port" address for
// Static, or a bare DNS name plus the port to dial resolved addresses on
// for the DNS-backed cluster types.
type HostConfig struct {
	Address  string            `yaml:"address"`
	Port     int               `yaml:"port,omitempty"`
	Zone     string            `yaml:"zone,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
}

// SdsConfig is the optional top-level "sds" object: the backing
// cluster used to reach the discovery service, plus its poll interval.
type SdsConfig struct {
	Cluster        ClusterConfig `yaml:"cluster"`
	RefreshDelayMs int           `yaml:"refresh_delay_ms,omitempty"`
}

// HealthCheckConfig is one cluster's "health_check" object.
type HealthCheckConfig struct {
	Type               string  `yaml:"type"`
	IntervalMs         int     `yaml:"interval_ms"`
	TimeoutMs          int     `yaml:"timeout_ms"`
	UnhealthyThreshold int     `yaml:"unhealthy_threshold"`
	HealthyThreshold   int     `yaml:"healthy_threshold"`
	Path               string  `yaml:"path,omitempty"`
	Send               string  `yaml:"send,omitempty"`
	Expect             string  `yaml:"expect,omitempty"`
	ExpectedStatusMin  int     `yaml:"expected_status_min,omitempty"`
	ExpectedStatusMax  int     `yaml:"expected_status_max,omitempty"`
	MaxProbesPerSecond float64 `yaml:"max_probes_per_second,omitempty"`
}

// OutlierConfig is a cluster's (or the top-level default) "outlier_detection" object.
type OutlierConfig struct {
	Consecutive5xxThreshold int    `yaml:"consecutive_5xx_threshold"`
	EjectionFloorPercent    int    `yaml:"ejection_floor_percent,omitempty"`
	BaseEjectionTimeMs      int    `yaml:"base_ejection_time_ms"`
	SweepIntervalMs         int    `yaml:"sweep_interval_ms,omitempty"`
	EventLogPath            string `yaml:"event_log_path,omitempty"`
}

// TLSConfig is a cluster's "tls" object, consulted only when its
// features list includes "tls".
type TLSConfig struct {
	ServerName         string `yaml:"server_name,omitempty"`
	CAFile             string `yaml:"ca_file,omitempty"`
	CertFile           string `yaml:"cert_file,omitempty"`
	KeyFile            string `yaml:"key_file,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	MinVersion         string `yaml:"min_version,omitempty"`
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file,omitempty"`
}

// AdminConfig configures the admin HTTP listener.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DNSConfig configures the shared DNS resolver used by StrictDns and
// LogicalDns clusters.
type DNSConfig struct {
	Server    string `yaml:"server,omitempty"`
	TimeoutMs int    `yaml:"timeout_ms,omitempty"`
}

// DefaultConfig returns a Config with the same sensible ambient
// defaults internal/config/config.go's DefaultConfig establishes,
// rescoped to this domain's settings.
func DefaultConfig() *Config {
	return &Config{
		WorkerCount: 4,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    ":8081",
		},
		DNSResolver: DNSConfig{
			TimeoutMs: 5000,
		},
	}
}

// LoadFromFile loads configuration from a YAML file, then validates it.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the structural constraints Load cannot recover from:
// every cluster needs a name and type, and the document needs at least
// one cluster. Cross-cluster checks (name uniqueness, backing-cluster
// references) are the manager package's job once it has the full
// picture, including the sds-block's inner cluster.
func (c *Config) Validate() error {
	if len(c.Clusters) == 0 && c.Sds == nil {
		return fmt.Errorf("at least one cluster must be configured")
	}

	for i, cl := range c.Clusters {
		if cl.Name == "" {
			return fmt.Errorf("clusters[%d]: name cannot be empty", i)
		}
		if cl.Type == "" {
			return fmt.Errorf("clusters[%d] %q: type cannot be empty", i, cl.Name)
		}
	}

	if c.Sds != nil && c.Sds.Cluster.Name == "" {
		return fmt.Errorf("sds.cluster: name cannot be empty")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}
