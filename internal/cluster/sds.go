package cluster

import (
	"context"
	"time"

	"github.com/mir00r/cluster-manager/internal/discovery/sds"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// SdsCluster's membership comes entirely from a remote discovery
// service, polled on a fixed interval; every response is a full replace.
// The manager — not this type — is responsible for delaying Initialize
// until this cluster's backing discovery cluster has itself initialized,
// per the init-ordering counter. Grounded on SdsClusterImpl.
type SdsCluster struct {
	base
	cfg      Config
	provider sds.Provider
	log      *logger.Logger

	refreshInterval time.Duration
	hostsByAddr     map[string]*upstream.Host

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSdsCluster builds an SdsCluster. provider performs the actual
// discovery-service calls (HTTP/JSON poller or gRPC unary caller).
func NewSdsCluster(info *upstream.ClusterInfo, cfg Config, provider sds.Provider, refreshInterval time.Duration, log *logger.Logger) *SdsCluster {
	if refreshInterval <= 0 {
		refreshInterval = 5 * time.Second
	}
	return &SdsCluster{
		base:            newBase(info),
		cfg:             cfg,
		provider:        provider,
		log:             log,
		refreshInterval: refreshInterval,
		hostsByAddr:     make(map[string]*upstream.Host),
	}
}

func (c *SdsCluster) Initialize(ctx context.Context, cb InitializedCallback) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	c.poll()
	if cb != nil {
		cb()
	}

	go c.refreshLoop(ctx)
	return nil
}

func (c *SdsCluster) refreshLoop(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll()
		}
	}
}

func (c *SdsCluster) poll() {
	resp, err := c.provider.Fetch()
	if err != nil {
		// SdsTransient: keep previous membership, retry next refresh.
		c.log.WithError(err).Warnf("sds: fetch failed for cluster %q, keeping previous membership", c.info.Name)
		return
	}

	next := make(map[string]*upstream.Host, len(resp.Members))
	full := make([]*upstream.Host, 0, len(resp.Members))
	for _, m := range resp.Members {
		if h, ok := c.hostsByAddr[m.Address]; ok {
			next[m.Address] = h
			full = append(full, h)
			continue
		}
		h := upstream.NewHost(c.info, m.Address, m.Zone, m.Metadata)
		next[m.Address] = h
		full = append(full, h)
	}

	oldFull := c.hostSet.Hosts()
	c.hostsByAddr = next
	added, removed := upstream.Diff(oldFull, full)
	c.hostSet.Update(full, added, removed)
}

func (c *SdsCluster) Shutdown() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	if c.provider != nil {
		_ = c.provider.Close()
	}
}
