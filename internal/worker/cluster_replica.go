// Package worker implements the per-worker execution context: each
// worker owns a private replica of every cluster's HostSet, its own
// LoadBalancer instances bound to those replicas, and a connection-pool
// map shared across all of its cluster replicas. Grounded on
// ThreadLocalClusterManagerImpl / ClusterEntry in
// cluster_manager_impl.cc.
package worker

import (
	"github.com/mir00r/cluster-manager/internal/loadbalancer"
	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

// ClusterReplica is a worker's private view of one cluster: its own
// HostSet (populated only by update tasks from the primary, never by
// the cluster's own discovery mechanism directly) and an LB policy bound
// to that HostSet. Grounded on ClusterEntry.
type ClusterReplica struct {
	Info         *upstream.ClusterInfo
	HostSet      *upstream.HostSet
	LB           loadbalancer.Policy
	LocalHostSet *upstream.HostSet // nil unless a local cluster is configured
}

// NewClusterReplica builds an empty replica for info, with an LB policy
// selected by the cluster's configured type.
func NewClusterReplica(info *upstream.ClusterInfo, rt *runtime.Snapshot, localZone string, localHostSet *upstream.HostSet) *ClusterReplica {
	hostSet := upstream.NewHostSet()
	return &ClusterReplica{
		Info:         info,
		HostSet:      hostSet,
		LB:           loadbalancer.NewPolicy(info.LBType, rt, localZone),
		LocalHostSet: localHostSet,
	}
}

// ChooseHost selects a host for one request, consulting the local
// HostSet for zone-aware routing if configured.
func (r *ClusterReplica) ChooseHost() *upstream.Host {
	return r.LB.Choose(r.HostSet, r.LocalHostSet)
}
