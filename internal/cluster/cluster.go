// Package cluster implements the four cluster discovery types — Static,
// StrictDns, LogicalDns, Sds — each owning exactly one primary-side
// upstream.HostSet and driving its membership according to its own
// discovery mechanism. Grounded on cluster_manager_impl.cc's loadCluster
// dispatch and internal/discovery's provider layout.
package cluster

import (
	"context"

	"github.com/mir00r/cluster-manager/internal/upstream"
)

// Type names one of the four discovery mechanisms.
type Type string

const (
	TypeStatic     Type = "static"
	TypeStrictDns  Type = "strict_dns"
	TypeLogicalDns Type = "logical_dns"
	TypeSds        Type = "sds"
)

// InitializedCallback is invoked exactly once, the first time a cluster
// finishes its first discovery pass (DNS resolved, SDS poll completed, or
// immediately for Static). The manager uses this to implement its
// pending-init counter, firing the externally registered callback once
// every cluster, including SDS-discovered ones, completes its first
// discovery pass.
type InitializedCallback func()

// Cluster is the primary-side representation of one configured cluster:
// its identity, its discovery-maintained HostSet, and lifecycle hooks the
// manager wires into the update-fanout and init-ordering machinery.
type Cluster interface {
	// Info returns the cluster's immutable identity and configuration.
	Info() *upstream.ClusterInfo

	// HostSet returns the primary-side membership view. Static never
	// mutates it after Initialize; StrictDns/LogicalDns/Sds update it on
	// every successful discovery refresh.
	HostSet() *upstream.HostSet

	// Initialize starts the cluster's discovery mechanism. For Static,
	// this populates the HostSet once and returns after calling cb.
	// For StrictDns/LogicalDns/Sds, this starts a background refresh
	// loop; cb fires once the first resolution/fetch pass completes,
	// whether or not it succeeded.
	Initialize(ctx context.Context, cb InitializedCallback) error

	// AddMemberUpdateCallback registers a subscriber notified on every
	// HostSet membership change — the manager uses this to drive
	// postThreadLocalClusterUpdate-style fan-out to worker replicas.
	AddMemberUpdateCallback(cb upstream.UpdateCallback)

	// Shutdown stops any background discovery goroutine.
	Shutdown()
}

// base holds the fields every variant needs: identity and HostSet. Each
// variant handles its own initialized callback.
type base struct {
	info    *upstream.ClusterInfo
	hostSet *upstream.HostSet
}

func newBase(info *upstream.ClusterInfo) base {
	return base{info: info, hostSet: upstream.NewHostSet()}
}

func (b *base) Info() *upstream.ClusterInfo        { return b.info }
func (b *base) HostSet() *upstream.HostSet         { return b.hostSet }
func (b *base) AddMemberUpdateCallback(cb upstream.UpdateCallback) {
	b.hostSet.AddMemberUpdateCallback(cb)
}
