package config

import (
	"fmt"
	"os"
	"strconv"
)

// applyEnvOverrides overlays the ambient settings environment variables
// can reasonably override onto cfg in place. Cluster topology
// (clusters[], sds) stays file-only: it is too structured to flatten
// into env vars sensibly, the same boundary internal/config/environment.go's
// LoadFromEnvironment draws around its backend list vs. its scalar
// settings.
func applyEnvOverrides(cfg *Config) {
	if level := getEnv("CM_LOG_LEVEL", ""); level != "" {
		cfg.Logging.Level = level
	}
	if format := getEnv("CM_LOG_FORMAT", ""); format != "" {
		cfg.Logging.Format = format
	}
	if output := getEnv("CM_LOG_OUTPUT", ""); output != "" {
		cfg.Logging.Output = output
	}
	if file := getEnv("CM_LOG_FILE", ""); file != "" {
		cfg.Logging.File = file
	}

	if workers := getEnv("CM_WORKER_COUNT", ""); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.WorkerCount = w
		}
	}

	if zone := getEnv("CM_LOCAL_ZONE_NAME", ""); zone != "" {
		cfg.LocalZoneName = zone
	}
	if cluster := getEnv("CM_LOCAL_CLUSTER_NAME", ""); cluster != "" {
		cfg.LocalClusterName = cluster
	}

	if enabled := getEnv("CM_ADMIN_ENABLED", ""); enabled != "" {
		cfg.Admin.Enabled = enabled == "true" || enabled == "1"
	}
	if addr := getEnv("CM_ADMIN_ADDR", ""); addr != "" {
		cfg.Admin.Addr = addr
	}

	if server := getEnv("CM_DNS_SERVER", ""); server != "" {
		cfg.DNSResolver.Server = server
	}
	if timeout := getEnv("CM_DNS_TIMEOUT_MS", ""); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			cfg.DNSResolver.TimeoutMs = t
		}
	}
}

// getEnv gets environment variable with fallback to default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// LoadConfig loads configuration with priority: env vars > config file
// > defaults. CONFIG_FILE names the YAML document; if unset or
// missing, defaults plus env overrides are used on their own.
func LoadConfig() (*Config, error) {
	configFile := getEnv("CONFIG_FILE", "config.yaml")

	var cfg *Config
	if _, err := os.Stat(configFile); err == nil {
		cfg, err = LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
