// Package loadbalancer implements the three host-selection policies —
// RoundRobin, LeastRequest, Random — each a pure function over a HostSet
// snapshot, with shared panic-mode and zone-aware behavior. Grounded on
// internal/service/load_balancer.go's strategy set
// (RoundRobinStrategy's atomic index, LeastConnections' comparison-based
// pick), adapted from backend weight/connection-count selection to the
// cluster manager's healthy/full HostSet vectors.
package loadbalancer

import (
	"math/rand"
	"sync/atomic"

	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

// Policy selects one host from a cluster's current membership, or nil if
// none is eligible.
type Policy interface {
	Choose(hostSet *upstream.HostSet, localHostSet *upstream.HostSet) *upstream.Host
}

const (
	panicThresholdRuntimeKey = "upstream.panic_threshold_percent"
	defaultPanicThreshold    = 50

	zoneHealthFloorRuntimeKey = "upstream.zone_health_floor_percent"
	defaultZoneHealthFloor    = 50
)

// candidateVector returns the vector a selector should choose from: the
// healthy vector normally, or the full vector once panic mode triggers
// because healthy coverage dropped below the runtime threshold.
func candidateVector(hostSet *upstream.HostSet, rt *runtime.Snapshot) []*upstream.Host {
	full := hostSet.Hosts()
	healthy := hostSet.HealthyHosts()
	if len(full) == 0 {
		return nil
	}

	threshold := defaultPanicThreshold
	if rt != nil {
		threshold = rt.GetInteger(panicThresholdRuntimeKey, defaultPanicThreshold)
	}

	healthyPct := len(healthy) * 100 / len(full)
	if healthyPct < threshold {
		return full
	}
	if len(healthy) == 0 {
		return full
	}
	return healthy
}

// zoneRestrict narrows candidates to the local zone's hosts when local
// zone coverage is healthy enough. It returns candidates unchanged if no
// local HostSet is configured, the local zone has no hosts, or zone
// health falls below the configurable floor.
func zoneRestrict(candidates []*upstream.Host, localHostSet *upstream.HostSet, localZone string, rt *runtime.Snapshot) []*upstream.Host {
	if localHostSet == nil || localZone == "" {
		return candidates
	}

	zoneFull := localHostSet.HostsPerZone()[localZone]
	zoneHealthy := localHostSet.HealthyHostsPerZone()[localZone]
	if len(zoneFull) == 0 {
		return candidates
	}

	floor := defaultZoneHealthFloor
	if rt != nil {
		floor = rt.GetInteger(zoneHealthFloorRuntimeKey, defaultZoneHealthFloor)
	}
	if len(zoneHealthy)*100/len(zoneFull) < floor {
		return candidates
	}

	restricted := make([]*upstream.Host, 0, len(candidates))
	for _, h := range candidates {
		if h.Zone == localZone {
			restricted = append(restricted, h)
		}
	}
	if len(restricted) == 0 {
		return candidates
	}
	return restricted
}

// RoundRobinPolicy cycles through the healthy vector, falling back to
// the full vector (via candidateVector) when panic mode is active.
type RoundRobinPolicy struct {
	index     uint64
	runtime   *runtime.Snapshot
	localZone string
}

func NewRoundRobinPolicy(rt *runtime.Snapshot, localZone string) *RoundRobinPolicy {
	return &RoundRobinPolicy{runtime: rt, localZone: localZone}
}

func (p *RoundRobinPolicy) Choose(hostSet, localHostSet *upstream.HostSet) *upstream.Host {
	candidates := candidateVector(hostSet, p.runtime)
	candidates = zoneRestrict(candidates, localHostSet, p.localZone, p.runtime)
	if len(candidates) == 0 {
		return nil
	}
	next := atomic.AddUint64(&p.index, 1)
	return candidates[(next-1)%uint64(len(candidates))]
}

// LeastRequestPolicy picks two candidates uniformly at random and
// returns the one with fewer in-flight requests — the "power of two
// choices" Envoy itself uses for LeastRequest.
type LeastRequestPolicy struct {
	runtime *runtime.Snapshot
}

func NewLeastRequestPolicy(rt *runtime.Snapshot) *LeastRequestPolicy {
	return &LeastRequestPolicy{runtime: rt}
}

func (p *LeastRequestPolicy) Choose(hostSet, _ *upstream.HostSet) *upstream.Host {
	candidates := candidateVector(hostSet, p.runtime)
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		return candidates[0]
	}

	a := candidates[rand.Intn(len(candidates))]
	b := candidates[rand.Intn(len(candidates))]
	if a.ActiveRequests() <= b.ActiveRequests() {
		return a
	}
	return b
}

// RandomPolicy picks uniformly from the healthy vector, falling back to
// the full vector via candidateVector.
type RandomPolicy struct {
	runtime   *runtime.Snapshot
	localZone string
}

func NewRandomPolicy(rt *runtime.Snapshot, localZone string) *RandomPolicy {
	return &RandomPolicy{runtime: rt, localZone: localZone}
}

func (p *RandomPolicy) Choose(hostSet, localHostSet *upstream.HostSet) *upstream.Host {
	candidates := candidateVector(hostSet, p.runtime)
	candidates = zoneRestrict(candidates, localHostSet, p.localZone, p.runtime)
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// NewPolicy builds the Policy named by lbType, defaulting to RoundRobin
// for an unrecognized value (Load validates lb_type beforehand).
func NewPolicy(lbType upstream.LBType, rt *runtime.Snapshot, localZone string) Policy {
	switch lbType {
	case upstream.LBLeastRequest:
		return NewLeastRequestPolicy(rt)
	case upstream.LBRandom:
		return NewRandomPolicy(rt, localZone)
	default:
		return NewRoundRobinPolicy(rt, localZone)
	}
}
