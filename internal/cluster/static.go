package cluster

import (
	"context"

	"github.com/mir00r/cluster-manager/internal/upstream"
)

// StaticCluster's membership is exactly the host list from configuration,
// fixed for the cluster's lifetime. Grounded on StaticClusterImpl, the
// simplest of the four cluster_manager_impl.cc variants: it populates its
// HostSet once and is "initialized" immediately, with no background
// refresh loop to shut down later.
type StaticCluster struct {
	base
	cfg Config
}

// NewStaticCluster builds a StaticCluster from cfg. Hosts are not added to
// the HostSet until Initialize runs, so member-update subscribers
// registered between construction and Initialize still observe the
// initial population.
func NewStaticCluster(info *upstream.ClusterInfo, cfg Config) *StaticCluster {
	return &StaticCluster{base: newBase(info), cfg: cfg}
}

func (c *StaticCluster) Initialize(_ context.Context, cb InitializedCallback) error {
	hosts := make([]*upstream.Host, 0, len(c.cfg.Hosts))
	for _, hc := range c.cfg.Hosts {
		hosts = append(hosts, upstream.NewHost(c.info, hc.Address, hc.Zone, hc.Metadata))
	}
	added, removed := upstream.Diff(nil, hosts)
	c.hostSet.Update(hosts, added, removed)
	if cb != nil {
		cb()
	}
	return nil
}

func (c *StaticCluster) Shutdown() {}
