package cluster

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/mir00r/cluster-manager/internal/dnsresolver"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// LogicalDnsCluster wraps exactly one configured name behind a single
// logical Host whose address is re-resolved on demand — on each outgoing
// connection attempt, not on a timer — with the Host object itself
// persisting across re-resolutions. That persistence is the point:
// connection pools are keyed by Host identity, so swapping the address
// in place keeps them alive across benign DNS churn instead of forcing a
// pool rebuild on every resolution. Resolution attempts are serialized,
// the conservative choice over letting concurrent connection attempts
// race independent lookups.
// Grounded on LogicalDnsCluster / logical_dns_cluster.h.
type LogicalDnsCluster struct {
	base
	cfg      Config
	resolver dnsresolver.Resolver
	log      *logger.Logger

	resolveMu sync.Mutex
	host      *upstream.Host
}

// NewLogicalDnsCluster builds a LogicalDnsCluster for cfg.Hosts[0].
func NewLogicalDnsCluster(info *upstream.ClusterInfo, cfg Config, resolver dnsresolver.Resolver, log *logger.Logger) *LogicalDnsCluster {
	return &LogicalDnsCluster{base: newBase(info), cfg: cfg, resolver: resolver, log: log}
}

// Initialize performs the first resolution synchronously (so the
// returned Host is present in the HostSet by the time cb fires) but
// starts no background loop — later re-resolution happens lazily,
// triggered by ResolveForConnect from the pool-allocation path.
func (c *LogicalDnsCluster) Initialize(ctx context.Context, cb InitializedCallback) error {
	if len(c.cfg.Hosts) > 0 {
		c.reresolve(ctx, c.cfg.Hosts[0])
	}
	if cb != nil {
		cb()
	}
	return nil
}

// ResolveForConnect returns the current logical host, triggering a fresh
// resolution first. Callers on the connection-attempt path (the
// connpool allocator) call this instead of reading the HostSet directly.
func (c *LogicalDnsCluster) ResolveForConnect(ctx context.Context) *upstream.Host {
	if len(c.cfg.Hosts) == 0 {
		return nil
	}
	c.reresolve(ctx, c.cfg.Hosts[0])
	return c.host
}

// reresolve serializes resolution attempts for this cluster's single
// name: only one DNS lookup is ever in flight. Concurrent callers of
// ResolveForConnect wait their turn and then each run their own lookup.
func (c *LogicalDnsCluster) reresolve(ctx context.Context, hc HostConfig) {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	addrs, err := resolveRetrying(ctx, c.resolver, hc.Address)
	if err != nil {
		c.log.WithError(err).Warnf("logical_dns: resolve of %q failed", hc.Address)
		return
	}
	if len(addrs) == 0 {
		return
	}
	addr := net.JoinHostPort(addrs[0], strconv.Itoa(hc.Port))

	if c.host == nil {
		c.host = upstream.NewHost(c.info, addr, hc.Zone, hc.Metadata)
		c.hostSet.Update([]*upstream.Host{c.host}, []*upstream.Host{c.host}, nil)
		return
	}
	if c.host.Address() == addr {
		return
	}
	c.host.SetAddress(addr)
	// The HostSet's full/healthy vectors still hold the same *Host
	// pointer; membership and health didn't change, so HostSet.Update
	// treats this as a no-op and notifies no subscriber. Holders of the
	// *Host see the new address directly.
	hosts := []*upstream.Host{c.host}
	c.hostSet.Update(hosts, nil, nil)
}

func (c *LogicalDnsCluster) Shutdown() {}
