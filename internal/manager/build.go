package manager

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/mir00r/cluster-manager/internal/cluster"
	"github.com/mir00r/cluster-manager/internal/discovery/sds"
	lberrors "github.com/mir00r/cluster-manager/internal/errors"
	"github.com/mir00r/cluster-manager/internal/sslcontext"
	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

// buildClusterInfo resolves spec's feature list and LB type into an
// immutable upstream.ClusterInfo with its stats pre-allocated.
func (m *Manager) buildClusterInfo(spec ClusterSpec) (*upstream.ClusterInfo, error) {
	var features upstream.Features
	for _, f := range spec.Cluster.Features {
		switch f {
		case "http2":
			features |= upstream.FeatureHTTP2
		case "tls":
			features |= upstream.FeatureTLS
		default:
			return nil, lberrors.NewConfigError("manager", fmt.Sprintf("cluster %q: unknown feature %q", spec.Cluster.Name, f))
		}
	}

	lbType := upstream.LBType(spec.Cluster.LBType)
	switch lbType {
	case upstream.LBRoundRobin, upstream.LBLeastRequest, upstream.LBRandom:
	case "":
		lbType = upstream.LBRoundRobin
	default:
		return nil, lberrors.NewConfigError("manager", fmt.Sprintf("cluster %q: unknown lb_type %q", spec.Cluster.Name, spec.Cluster.LBType))
	}

	var tlsConfig *tls.Config
	if features&upstream.FeatureTLS != 0 {
		sslCfg := spec.Cluster.TLS
		sslCfg.Enabled = true
		var err error
		tlsConfig, err = sslcontext.Build(sslCfg)
		if err != nil {
			return nil, lberrors.NewConfigError("manager", fmt.Sprintf("cluster %q: %v", spec.Cluster.Name, err))
		}
	}

	return &upstream.ClusterInfo{
		Name:        spec.Cluster.Name,
		Features:    features,
		LBType:      lbType,
		Stats:       stats.NewClusterStats(m.stats, spec.Cluster.Name),
		UpstreamTLS: tlsConfig,
	}, nil
}

// buildCluster dispatches on spec's type to construct the matching
// cluster.Cluster implementation.
func (m *Manager) buildCluster(info *upstream.ClusterInfo, spec ClusterSpec) (cluster.Cluster, error) {
	cfg := spec.Cluster
	switch cfg.Type {
	case cluster.TypeStatic:
		return cluster.NewStaticCluster(info, cfg), nil

	case cluster.TypeStrictDns:
		return cluster.NewStrictDnsCluster(info, cfg, m.resolver, m.log), nil

	case cluster.TypeLogicalDns:
		return cluster.NewLogicalDnsCluster(info, cfg, m.resolver, m.log), nil

	case cluster.TypeSds:
		provider, refresh, err := m.buildSdsProvider(cfg)
		if err != nil {
			return nil, err
		}
		return cluster.NewSdsCluster(info, cfg, provider, refresh, m.log), nil

	default:
		return nil, lberrors.NewConfigError("manager", fmt.Sprintf("cluster %q: unknown type %q", cfg.Name, cfg.Type))
	}
}

// buildSdsProvider builds the discovery transport an SDS cluster polls.
// The HTTP transport resolves its backing cluster's address lazily (once
// per Fetch) via the worker pool's round-robin selection, the same as any
// other request would; the gRPC transport dials the backing cluster's
// name as its fixed target.
func (m *Manager) buildSdsProvider(cfg cluster.Config) (sds.Provider, time.Duration, error) {
	if cfg.SdsBackingCluster == "" {
		return nil, 0, lberrors.NewConfigError("manager", fmt.Sprintf("sds cluster %q: missing backing cluster", cfg.Name))
	}

	refresh := time.Duration(cfg.SdsRefreshRateMs) * time.Millisecond
	timeout := time.Duration(cfg.SdsTimeoutMs) * time.Millisecond

	resolveEndpoint := func() (string, error) {
		host, err := m.worker().ChooseHost(cfg.SdsBackingCluster)
		if err != nil {
			return "", err
		}
		return host.Address(), nil
	}

	switch cfg.SdsTransport {
	case "grpc":
		provider, err := sds.NewGRPCProvider(resolveEndpointTarget(cfg), cfg.SdsMethod, timeout)
		if err != nil {
			return nil, 0, lberrors.NewConfigError("manager", fmt.Sprintf("sds cluster %q: %v", cfg.Name, err))
		}
		return provider, refresh, nil

	case "", "http":
		path := cfg.SdsPath
		if path == "" {
			path = "/v1/discovery:clusters"
		}
		return sds.NewHTTPProvider(resolveEndpoint, path, timeout), refresh, nil

	default:
		return nil, 0, lberrors.NewConfigError("manager", fmt.Sprintf("sds cluster %q: unknown transport %q", cfg.Name, cfg.SdsTransport))
	}
}

func resolveEndpointTarget(cfg cluster.Config) string {
	return cfg.SdsBackingCluster
}

// validate checks the structural invariants Load depends on: unique
// cluster names, a resolvable SDS backing cluster reference, and a
// local cluster name that actually names a registered cluster.
func validate(cfg Config) error {
	seen := make(map[string]bool, len(cfg.Clusters)+1)
	if cfg.Sds != nil {
		name := cfg.Sds.Cluster.Cluster.Name
		if name == "" {
			return lberrors.NewConfigError("manager", "sds.cluster.name must not be empty")
		}
		seen[name] = true
	}
	for _, spec := range cfg.Clusters {
		name := spec.Cluster.Name
		if name == "" {
			return lberrors.NewConfigError("manager", "cluster name must not be empty")
		}
		if seen[name] {
			return lberrors.NewConfigError("manager", fmt.Sprintf("duplicate cluster name %q", name))
		}
		seen[name] = true
	}

	for _, spec := range cfg.Clusters {
		if spec.Cluster.Type == cluster.TypeSds {
			if cfg.Sds == nil {
				return lberrors.NewConfigError("manager", fmt.Sprintf("sds cluster %q: no sds config", spec.Cluster.Name))
			}
			backing := spec.Cluster.SdsBackingCluster
			if backing == "" || !seen[backing] {
				return lberrors.NewConfigError("manager", fmt.Sprintf("sds cluster %q: backing cluster %q not registered", spec.Cluster.Name, backing))
			}
		}
	}

	if cfg.LocalClusterName != "" && !seen[cfg.LocalClusterName] {
		return lberrors.NewConfigError("manager", fmt.Sprintf("local_cluster_name %q is not a registered cluster", cfg.LocalClusterName))
	}

	return nil
}
