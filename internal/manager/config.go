package manager

import (
	"github.com/mir00r/cluster-manager/internal/cluster"
	"github.com/mir00r/cluster-manager/internal/dnsresolver"
	"github.com/mir00r/cluster-manager/internal/healthcheck"
	"github.com/mir00r/cluster-manager/internal/outlier"
)

// ClusterSpec is one "clusters[]" configuration entry: a cluster.Config
// plus its optional health-check and outlier-detection settings.
type ClusterSpec struct {
	Cluster       cluster.Config
	HealthCheck   *healthcheck.Config
	OutlierDetect *outlier.Config
}

// SdsSpec is the optional top-level "sds" config object: the backing
// cluster used to reach the discovery service, plus the poll interval.
type SdsSpec struct {
	Cluster        ClusterSpec
	RefreshDelayMs int
}

// Config is the fully-parsed bootstrap configuration Load consumes.
type Config struct {
	Clusters    []ClusterSpec
	Sds         *SdsSpec
	WorkerCount int

	LocalZoneName    string
	LocalClusterName string

	OutlierEventLogPath string

	DNSResolver dnsresolver.Config
}
