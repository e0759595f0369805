package config

import (
	"time"

	"github.com/mir00r/cluster-manager/internal/cluster"
	"github.com/mir00r/cluster-manager/internal/dnsresolver"
	"github.com/mir00r/cluster-manager/internal/healthcheck"
	"github.com/mir00r/cluster-manager/internal/manager"
	"github.com/mir00r/cluster-manager/internal/outlier"
	"github.com/mir00r/cluster-manager/internal/sslcontext"
)

// ToManagerConfig translates the parsed YAML/env document into the
// normalized shape manager.Manager.Load consumes.
func (c *Config) ToManagerConfig() manager.Config {
	mc := manager.Config{
		WorkerCount:      c.WorkerCount,
		LocalZoneName:    c.LocalZoneName,
		LocalClusterName: c.LocalClusterName,
		DNSResolver: dnsresolver.Config{
			Server:  c.DNSResolver.Server,
			Timeout: millis(c.DNSResolver.TimeoutMs),
		},
	}

	if c.OutlierDetection != nil {
		mc.OutlierEventLogPath = c.OutlierDetection.EventLogPath
	}

	for _, cl := range c.Clusters {
		mc.Clusters = append(mc.Clusters, toClusterSpec(cl, c.OutlierDetection))
	}

	if c.Sds != nil {
		spec := toClusterSpec(c.Sds.Cluster, c.OutlierDetection)
		mc.Sds = &manager.SdsSpec{Cluster: spec, RefreshDelayMs: c.Sds.RefreshDelayMs}
	}

	return mc
}

// toClusterSpec converts one ClusterConfig into a manager.ClusterSpec.
// clusterDefault, when set, backfills a cluster's missing
// outlier_detection block, the way cluster_manager_impl.cc applies the
// bootstrap-level default to any cluster that doesn't override it.
func toClusterSpec(cl ClusterConfig, clusterDefault *OutlierConfig) manager.ClusterSpec {
	spec := manager.ClusterSpec{Cluster: toClusterConfig(cl)}

	if cl.HealthCheck != nil {
		spec.HealthCheck = toHealthCheckConfig(cl.HealthCheck)
	}

	od := cl.OutlierDetection
	if od == nil {
		od = clusterDefault
	}
	if od != nil {
		spec.OutlierDetect = toOutlierConfig(od)
	}

	return spec
}

func toClusterConfig(cl ClusterConfig) cluster.Config {
	hosts := make([]cluster.HostConfig, len(cl.Hosts))
	for i, h := range cl.Hosts {
		hosts[i] = cluster.HostConfig{Address: h.Address, Port: h.Port, Zone: h.Zone, Metadata: h.Metadata}
	}

	cfg := cluster.Config{
		Name:             cl.Name,
		Type:             cluster.Type(cl.Type),
		LBType:           cl.LBType,
		Hosts:            hosts,
		Features:         cl.Features,
		DNSRefreshRateMs: cl.DNSRefreshRateMs,

		SdsBackingCluster: cl.SdsBackingCluster,
		SdsTransport:      cl.SdsTransport,
		SdsPath:           cl.SdsPath,
		SdsMethod:         cl.SdsMethod,
		SdsTimeoutMs:      cl.SdsTimeoutMs,
		SdsRefreshRateMs:  cl.SdsRefreshRateMs,
	}

	if cl.TLS != nil {
		cfg.TLS = sslcontext.Config{
			ServerName:         cl.TLS.ServerName,
			CAFile:             cl.TLS.CAFile,
			CertFile:           cl.TLS.CertFile,
			KeyFile:            cl.TLS.KeyFile,
			InsecureSkipVerify: cl.TLS.InsecureSkipVerify,
			MinVersion:         cl.TLS.MinVersion,
		}
	}

	return cfg
}

func toHealthCheckConfig(hc *HealthCheckConfig) *healthcheck.Config {
	return &healthcheck.Config{
		Type:               healthcheck.Type(hc.Type),
		Interval:           millis(hc.IntervalMs),
		Timeout:            millis(hc.TimeoutMs),
		UnhealthyThreshold: hc.UnhealthyThreshold,
		HealthyThreshold:   hc.HealthyThreshold,
		Path:               hc.Path,
		ExpectedStatusMin:  hc.ExpectedStatusMin,
		ExpectedStatusMax:  hc.ExpectedStatusMax,
		Send:               []byte(hc.Send),
		Expect:             []byte(hc.Expect),
		MaxProbesPerSecond: hc.MaxProbesPerSecond,
	}
}

func toOutlierConfig(od *OutlierConfig) *outlier.Config {
	return &outlier.Config{
		Consecutive5xxThreshold: uint32(od.Consecutive5xxThreshold),
		EjectionFloorPercent:    od.EjectionFloorPercent,
		BaseEjectionTime:        millis(od.BaseEjectionTimeMs),
		SweepInterval:           millis(od.SweepIntervalMs),
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
