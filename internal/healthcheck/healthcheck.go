// Package healthcheck implements active health checking: a per-host
// probe loop driving the {Unknown → Healthy ⇄ Failing → Unhealthy} state
// machine defined in state.go, mutating Host.SetFailedActiveCheck on
// threshold-crossing transitions and triggering the owning HostSet's
// update path so the change propagates to load balancers. Grounded on
// internal/service/health_checker.go for the goroutine
// loop/stop-channel shape.
package healthcheck

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// Checker runs active health checks for every host of one cluster.
type Checker struct {
	cfg     Config
	probe   Probe
	hostSet *upstream.HostSet
	stats   *stats.ClusterStats
	log     *logger.Logger
	limiter *rate.Limiter

	mu        sync.Mutex
	states    map[*upstream.Host]*hostState
	cancels   map[*upstream.Host]context.CancelFunc
	wg        sync.WaitGroup
	parentCtx context.Context
}

// New builds a Checker for one cluster. hostSet is the cluster's
// primary-side HostSet — Checker mutates hosts' health flags and calls
// hostSet.Update to republish, exactly mirroring how the active health
// checker and outlier detector both "trigger the cluster's update path"
// per host, matching how the outlier detector also republishes on a
// health-flag change without a membership delta.
func New(cfg Config, hostSet *upstream.HostSet, clusterStats *stats.ClusterStats, log *logger.Logger) *Checker {
	var probe Probe
	if cfg.Type == TypeTCP {
		probe = NewTCPProbe(cfg)
	} else {
		probe = NewHTTPProbe(cfg)
	}

	var limiter *rate.Limiter
	if cfg.MaxProbesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxProbesPerSecond), 1)
	}

	return &Checker{
		cfg:     cfg,
		probe:   probe,
		hostSet: hostSet,
		stats:   clusterStats,
		log:     log,
		limiter: limiter,
		states:  make(map[*upstream.Host]*hostState),
		cancels: make(map[*upstream.Host]context.CancelFunc),
	}
}

// Start launches a probe loop for every host currently in the HostSet
// and registers a member-update subscriber so hosts added later also get
// a loop, and removed hosts have theirs stopped.
func (c *Checker) Start(ctx context.Context) {
	c.parentCtx = ctx
	for _, h := range c.hostSet.Hosts() {
		c.addHost(h)
	}
	c.hostSet.AddMemberUpdateCallback(func(added, removed []*upstream.Host) {
		for _, h := range added {
			c.addHost(h)
		}
		for _, h := range removed {
			c.removeHost(h)
		}
	})
}

// Stop cancels every host's probe loop and waits for them to exit.
func (c *Checker) Stop() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.cancels = make(map[*upstream.Host]context.CancelFunc)
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	c.wg.Wait()
}

func (c *Checker) addHost(h *upstream.Host) {
	c.mu.Lock()
	if _, ok := c.cancels[h]; ok {
		c.mu.Unlock()
		return
	}
	st := &hostState{}
	ctx, cancel := context.WithCancel(c.parentCtx)
	c.states[h] = st
	c.cancels[h] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go c.loop(ctx, h, st)
}

func (c *Checker) removeHost(h *upstream.Host) {
	c.mu.Lock()
	cancel, ok := c.cancels[h]
	if ok {
		delete(c.cancels, h)
		delete(c.states, h)
	}
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Checker) loop(ctx context.Context, h *upstream.Host, st *hostState) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.runOnce(ctx, h, st)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runOnce(ctx, h, st)
		}
	}
}

func (c *Checker) runOnce(ctx context.Context, h *upstream.Host, st *hostState) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if c.stats != nil {
		c.stats.HealthCheckAttempt.Inc()
	}

	err := c.probe.Probe(checkCtx, h)
	success := err == nil
	if success && c.stats != nil {
		c.stats.HealthCheckSuccess.Inc()
	} else if !success && c.stats != nil {
		c.stats.HealthCheckFailure.Inc()
	}

	changed, failed := st.observe(success, c.cfg.HealthyThreshold, c.cfg.UnhealthyThreshold)
	if !changed {
		return
	}

	h.SetFailedActiveCheck(failed)
	// Triggers the cluster's update path: same full vector, no
	// membership delta, but the recomputed healthy vector now reflects
	// this host's new flag.
	c.hostSet.Update(c.hostSet.Hosts(), nil, nil)
}
