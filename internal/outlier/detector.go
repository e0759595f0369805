package outlier

import (
	"sync"
	"time"

	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// Config is one cluster's outlier-detection configuration.
type Config struct {
	Consecutive5xxThreshold uint32
	// EjectionFloorPercent is the minimum unejected-healthy fraction
	// (0-100) the cap enforces; ejecting a host that would push the
	// fraction below this refuses the ejection instead.
	EjectionFloorPercent int
	BaseEjectionTime      time.Duration
	SweepInterval         time.Duration
}

// EventLogger records ejection/un-ejection events. Detector calls it
// without knowing whether events are discarded, written to a file, or
// something else entirely.
type EventLogger interface {
	LogEject(host *upstream.Host, numEjections uint32)
	LogUneject(host *upstream.Host)
}

type noopEventLogger struct{}

func (noopEventLogger) LogEject(*upstream.Host, uint32) {}
func (noopEventLogger) LogUneject(*upstream.Host)       {}

// Detector is one cluster's outlier detector: it owns a sink per
// observed host, runs the consecutive-5xx ejection check inline with
// each response observation, and sweeps ejected hosts on an interval
// timer to apply the linear-backoff un-ejection rule. Grounded on
// DetectorImpl / DetectorHostSinkImpl in outlier_detection_impl.h, with
// the documented cyclic-ownership bug fixed: sinks hold a weak reference
// to the detector (see sink.go) instead of a raw back-pointer, and the
// detector holds only plain pointers to hosts — it never keeps a host
// alive once every other holder has released it.
type Detector struct {
	cfg     Config
	hostSet *upstream.HostSet
	stats   *stats.ClusterStats
	logger  EventLogger
	log     *logger.Logger

	mu    sync.Mutex
	sinks map[*upstream.Host]*hostSink

	stop chan struct{}
	done chan struct{}
}

// New builds a Detector for one cluster's HostSet. eventLogger may be
// nil, in which case events are silently discarded.
func New(cfg Config, hostSet *upstream.HostSet, clusterStats *stats.ClusterStats, eventLogger EventLogger, log *logger.Logger) *Detector {
	if eventLogger == nil {
		eventLogger = noopEventLogger{}
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Second
	}
	if cfg.EjectionFloorPercent <= 0 {
		cfg.EjectionFloorPercent = 10
	}
	return &Detector{
		cfg:     cfg,
		hostSet: hostSet,
		stats:   clusterStats,
		logger:  eventLogger,
		log:     log,
		sinks:   make(map[*upstream.Host]*hostSink),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start registers hosts already in the HostSet, subscribes to future
// membership changes, and starts the interval sweep that drives
// un-ejection.
func (d *Detector) Start() {
	for _, h := range d.hostSet.Hosts() {
		d.addHost(h)
	}
	d.hostSet.AddMemberUpdateCallback(func(added, removed []*upstream.Host) {
		for _, h := range added {
			d.addHost(h)
		}
		for _, h := range removed {
			d.removeHost(h)
		}
	})
	go d.sweepLoop()
}

// Close stops the sweep loop and clears every sink's weak reference to
// this detector, so any caller still holding a sink (e.g. a worker
// mid-flight with a pointer from a stale snapshot) stops reporting into
// a detector that is no longer sweeping — the fix for the documented
// cyclic-ownership bug.
func (d *Detector) Close() {
	close(d.stop)
	<-d.done

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sinks {
		s.detector.clear()
	}
}

// Sink returns the per-host sink callers report HTTP response codes
// into. Returns nil if host isn't tracked (e.g. it was removed).
func (d *Detector) Sink(host *upstream.Host) *hostSink {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sinks[host]
}

func (d *Detector) addHost(h *upstream.Host) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sinks[h]; ok {
		return
	}
	d.sinks[h] = newHostSink(d, h)
}

func (d *Detector) removeHost(h *upstream.Host) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sinks, h)
}

// onConsecutive5xx is invoked by a hostSink each time it observes a 5xx
// response. count is the host's current consecutive-5xx tally.
func (d *Detector) onConsecutive5xx(host *upstream.Host, sink *hostSink, count uint32) {
	if count < d.cfg.Consecutive5xxThreshold {
		return
	}
	if host.OutlierEjected() {
		return
	}

	if !d.ejectionAllowed() {
		// The host was never ejected, so ejections_active is left as is;
		// only ejections_overflow counts the refused attempt.
		if d.stats != nil {
			d.stats.EjectionsOverflow.Inc()
		}
		return
	}

	sink.eject(time.Now())
	if d.stats != nil {
		d.stats.EjectionsTotal.Inc()
		d.stats.EjectionsActive.Inc()
		d.stats.EjectionsConsecutive5xx.Inc()
	}
	d.logger.LogEject(host, sink.numEjectionsCount())
	d.republish()
}

// ejectionAllowed enforces the ejection cap: refuses the ejection if it
// would push the unejected-healthy fraction below the configured floor.
func (d *Detector) ejectionAllowed() bool {
	full := d.hostSet.Hosts()
	if len(full) == 0 {
		return true
	}
	unejected := 0
	for _, h := range full {
		if !h.OutlierEjected() {
			unejected++
		}
	}
	// Ejecting one more host would leave unejected-1 of len(full).
	projected := (unejected - 1) * 100 / len(full)
	return projected >= d.cfg.EjectionFloorPercent
}

func (d *Detector) sweepLoop() {
	defer close(d.done)
	ticker := time.NewTicker(d.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *Detector) sweep() {
	now := time.Now()
	d.mu.Lock()
	sinks := make([]*hostSink, 0, len(d.sinks))
	for _, s := range d.sinks {
		sinks = append(sinks, s)
	}
	d.mu.Unlock()

	var unejectedAny bool
	for _, s := range sinks {
		ejectedAt, ok := s.ejectedAt()
		if !ok || !s.host.OutlierEjected() {
			continue
		}
		threshold := time.Duration(s.numEjectionsCount()) * d.cfg.BaseEjectionTime
		if now.Sub(ejectedAt) >= threshold {
			s.uneject()
			if d.stats != nil {
				d.stats.EjectionsActive.Dec()
			}
			d.logger.LogUneject(s.host)
			unejectedAny = true
		}
	}
	if unejectedAny {
		d.republish()
	}
}

// republish triggers the cluster's update path: same full vector, no
// membership delta, recomputed healthy vector.
func (d *Detector) republish() {
	d.hostSet.Update(d.hostSet.Hosts(), nil, nil)
}
