package upstream

import (
	"crypto/tls"

	"github.com/mir00r/cluster-manager/internal/stats"
)

// LBType names one of the three load-balancer policies a cluster can be
// configured with.
type LBType string

const (
	LBRoundRobin    LBType = "round_robin"
	LBLeastRequest  LBType = "least_request"
	LBRandom        LBType = "random"
)

// ClusterInfo is the immutable identity and configuration of one cluster,
// shared by every worker's replica and the primary. It never changes
// after Load. Cluster names are globally unique across the manager.
type ClusterInfo struct {
	Name     string
	Features Features
	LBType   LBType
	Stats    *stats.ClusterStats

	// UpstreamTLS is non-nil iff FeatureTLS is set; connpool dials every
	// host in this cluster through it instead of a plaintext transport.
	UpstreamTLS *tls.Config
}

// HasFeature reports whether f is set in the cluster's feature bitset.
func (c *ClusterInfo) HasFeature(f Features) bool { return c.Features&f != 0 }
