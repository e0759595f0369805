package cluster

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/mir00r/cluster-manager/internal/dnsresolver"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// StrictDnsCluster resolves every configured host name on a fixed
// interval and maintains one upstream.Host per resolved address, across
// all configured names. A name that stops resolving to an address it
// previously returned causes that host to be removed — "strict" in the
// sense that the HostSet tracks DNS truth exactly, unlike LogicalDns
// which keeps using whichever address it last picked per name. Grounded
// on StrictDnsClusterImpl.
type StrictDnsCluster struct {
	base
	cfg      Config
	resolver dnsresolver.Resolver
	log      *logger.Logger

	mu          sync.Mutex
	perNameAddr map[string]map[string]*upstream.Host // name -> address -> Host

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStrictDnsCluster builds a StrictDnsCluster. resolver performs the
// actual DNS lookups; refresh cadence comes from cfg.DNSRefreshRateMs.
func NewStrictDnsCluster(info *upstream.ClusterInfo, cfg Config, resolver dnsresolver.Resolver, log *logger.Logger) *StrictDnsCluster {
	return &StrictDnsCluster{
		base:        newBase(info),
		cfg:         cfg,
		resolver:    resolver,
		log:         log,
		perNameAddr: make(map[string]map[string]*upstream.Host),
	}
}

func (c *StrictDnsCluster) Initialize(ctx context.Context, cb InitializedCallback) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(len(c.cfg.Hosts))
	for _, hc := range c.cfg.Hosts {
		hc := hc
		go func() {
			defer wg.Done()
			addrs, err := resolveRetrying(ctx, c.resolver, hc.Address)
			if err != nil {
				c.log.WithError(err).Warnf("strict_dns: initial resolve of %q failed", hc.Address)
				return
			}
			c.applyResolution(hc, addrs)
		}()
	}
	wg.Wait()

	if cb != nil {
		cb()
	}

	interval := time.Duration(c.cfg.DNSRefreshRateMs) * time.Millisecond
	if interval <= 0 {
		interval = 5 * time.Second
	}
	go c.refreshLoop(ctx, interval)
	return nil
}

func (c *StrictDnsCluster) refreshLoop(ctx context.Context, interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, hc := range c.cfg.Hosts {
				hc := hc
				addrs, err := resolveRetrying(ctx, c.resolver, hc.Address)
				if err != nil {
					c.log.WithError(err).Warnf("strict_dns: refresh of %q failed", hc.Address)
					continue
				}
				c.applyResolution(hc, addrs)
			}
		}
	}
}

func (c *StrictDnsCluster) applyResolution(hc HostConfig, addrs []string) {
	c.mu.Lock()
	current, ok := c.perNameAddr[hc.Address]
	if !ok {
		current = make(map[string]*upstream.Host)
	}

	next := make(map[string]*upstream.Host, len(addrs))
	for _, resolved := range addrs {
		addr := net.JoinHostPort(resolved, strconv.Itoa(hc.Port))
		if h, ok := current[addr]; ok {
			next[addr] = h
			continue
		}
		// A fresh address always gets a brand-new Host — identity is
		// never reused across re-resolution, even if this exact string
		// appeared before under a different name.
		next[addr] = upstream.NewHost(c.info, addr, hc.Zone, hc.Metadata)
	}
	c.perNameAddr[hc.Address] = next

	full := c.rebuildFullLocked()
	c.mu.Unlock()

	oldFull := c.hostSet.Hosts()
	added, removed := upstream.Diff(oldFull, full)
	c.hostSet.Update(full, added, removed)
}

// rebuildFullLocked must be called with c.mu held.
func (c *StrictDnsCluster) rebuildFullLocked() []*upstream.Host {
	var full []*upstream.Host
	for _, byAddr := range c.perNameAddr {
		for _, h := range byAddr {
			full = append(full, h)
		}
	}
	return full
}

func (c *StrictDnsCluster) Shutdown() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}
