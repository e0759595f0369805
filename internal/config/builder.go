package config

import (
	"fmt"
)

// Builder provides a fluent interface for assembling a Config
// programmatically, the same accumulate-errors-then-fail-at-Build
// pattern as internal/config/builder.go's ConfigBuilder.
type Builder struct {
	config *Config
	errors []error
}

// NewBuilder creates a Builder seeded with DefaultConfig's ambient
// settings.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithCluster appends one cluster entry.
func (b *Builder) WithCluster(c ClusterConfig) *Builder {
	if c.Name == "" {
		b.errors = append(b.errors, fmt.Errorf("cluster name cannot be empty"))
		return b
	}
	if c.Type == "" {
		b.errors = append(b.errors, fmt.Errorf("cluster %q: type cannot be empty", c.Name))
		return b
	}
	b.config.Clusters = append(b.config.Clusters, c)
	return b
}

// WithSds configures the top-level sds block.
func (b *Builder) WithSds(backing ClusterConfig, refreshDelayMs int) *Builder {
	if backing.Name == "" {
		b.errors = append(b.errors, fmt.Errorf("sds cluster name cannot be empty"))
		return b
	}
	b.config.Sds = &SdsConfig{Cluster: backing, RefreshDelayMs: refreshDelayMs}
	return b
}

// WithLogging configures logging settings.
func (b *Builder) WithLogging(level, format, output string) *Builder {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	validFormats := map[string]bool{"json": true, "text": true}

	if !validLevels[level] {
		b.errors = append(b.errors, fmt.Errorf("invalid log level: %s", level))
		return b
	}
	if !validFormats[format] {
		b.errors = append(b.errors, fmt.Errorf("invalid log format: %s", format))
		return b
	}

	b.config.Logging.Level = level
	b.config.Logging.Format = format
	b.config.Logging.Output = output
	return b
}

// WithAdmin configures the admin HTTP listener.
func (b *Builder) WithAdmin(enabled bool, addr string) *Builder {
	if enabled && addr == "" {
		b.errors = append(b.errors, fmt.Errorf("admin addr cannot be empty when enabled"))
		return b
	}
	b.config.Admin.Enabled = enabled
	b.config.Admin.Addr = addr
	return b
}

// WithWorkerCount sets the worker pool size.
func (b *Builder) WithWorkerCount(n int) *Builder {
	if n <= 0 {
		b.errors = append(b.errors, fmt.Errorf("worker count must be positive: %d", n))
		return b
	}
	b.config.WorkerCount = n
	return b
}

// WithLocalZone sets the zone-aware routing identity.
func (b *Builder) WithLocalZone(zoneName, clusterName string) *Builder {
	b.config.LocalZoneName = zoneName
	b.config.LocalClusterName = clusterName
	return b
}

// Build validates the accumulated configuration and returns it.
func (b *Builder) Build() (*Config, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("config builder: %d validation errors, first: %w", len(b.errors), b.errors[0])
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}
