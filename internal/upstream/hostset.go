package upstream

import "sync"

// UpdateCallback is invoked by a HostSet whenever its membership or
// health-derived vectors change. added/removed describe the membership
// delta only — a health-flag-only recompute (triggered by the health
// checker or outlier detector) invokes subscribers with both nil.
type UpdateCallback func(added, removed []*Host)

// hostSetSnapshot is the atomically-swapped, immutable body of a
// HostSet. Subscribers that capture a snapshot always see all four
// vectors from the same update: updates are applied atomically from
// the observer's perspective.
type hostSetSnapshot struct {
	full           []*Host
	healthy        []*Host
	fullPerZone    map[string][]*Host
	healthyPerZone map[string][]*Host
}

// HostSet is the membership view of one cluster at one observer
// (primary or worker). Reads never lock: callers load the current
// snapshot pointer and work from the slices inside it.
type HostSet struct {
	snapshot atomicSnapshot

	subMu       sync.Mutex
	subscribers []UpdateCallback
}

// NewHostSet creates an empty HostSet.
func NewHostSet() *HostSet {
	hs := &HostSet{}
	hs.snapshot.store(&hostSetSnapshot{
		fullPerZone:    map[string][]*Host{},
		healthyPerZone: map[string][]*Host{},
	})
	return hs
}

// Hosts returns the full host vector.
func (hs *HostSet) Hosts() []*Host { return hs.snapshot.load().full }

// HealthyHosts returns the healthy-only host vector. Always a subset of
// Hosts().
func (hs *HostSet) HealthyHosts() []*Host { return hs.snapshot.load().healthy }

// HostsPerZone returns the full hosts, partitioned by zone.
func (hs *HostSet) HostsPerZone() map[string][]*Host { return hs.snapshot.load().fullPerZone }

// HealthyHostsPerZone returns the healthy hosts, partitioned by zone.
func (hs *HostSet) HealthyHostsPerZone() map[string][]*Host { return hs.snapshot.load().healthyPerZone }

// AddMemberUpdateCallback registers a subscriber, invoked after every
// applied update.
func (hs *HostSet) AddMemberUpdateCallback(cb UpdateCallback) {
	hs.subMu.Lock()
	defer hs.subMu.Unlock()
	hs.subscribers = append(hs.subscribers, cb)
}

// Update recomputes the healthy and per-zone vectors from full and
// atomically swaps them in, then notifies subscribers with the supplied
// membership delta. Pass nil/nil for added/removed when this update only
// reflects a health-flag change (no host added or removed) — e.g. from
// HealthChecker or OutlierDetector state transitions, which trigger the
// cluster's update path without changing membership.
//
// Applying a snapshot that produces no change at all (same full set,
// same healthy set, empty delta) is a no-op: no second notification
// fires.
func (hs *HostSet) Update(full []*Host, added, removed []*Host) {
	healthy := make([]*Host, 0, len(full))
	for _, h := range full {
		if h.IsHealthy() {
			healthy = append(healthy, h)
		}
	}

	next := &hostSetSnapshot{
		full:           full,
		healthy:        healthy,
		fullPerZone:    partitionByZone(full),
		healthyPerZone: partitionByZone(healthy),
	}

	prev := hs.snapshot.load()
	if len(added) == 0 && len(removed) == 0 && sameHostSet(prev.full, full) && sameHostSet(prev.healthy, healthy) {
		return
	}

	hs.snapshot.store(next)

	hs.subMu.Lock()
	subs := append([]UpdateCallback(nil), hs.subscribers...)
	hs.subMu.Unlock()
	for _, cb := range subs {
		cb(added, removed)
	}
}

func partitionByZone(hosts []*Host) map[string][]*Host {
	out := make(map[string][]*Host)
	for _, h := range hosts {
		out[h.Zone] = append(out[h.Zone], h)
	}
	return out
}

func sameHostSet(a, b []*Host) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[*Host]struct{}, len(a))
	for _, h := range a {
		set[h] = struct{}{}
	}
	for _, h := range b {
		if _, ok := set[h]; !ok {
			return false
		}
	}
	return true
}

// Diff computes the (added, removed) delta between an old and new full
// host vector, identity-keyed. Cluster implementations call this before
// Update so the HostSet (and downstream drain machinery) gets the exact
// membership delta rather than having to infer it.
func Diff(oldFull, newFull []*Host) (added, removed []*Host) {
	oldSet := make(map[*Host]struct{}, len(oldFull))
	for _, h := range oldFull {
		oldSet[h] = struct{}{}
	}
	newSet := make(map[*Host]struct{}, len(newFull))
	for _, h := range newFull {
		newSet[h] = struct{}{}
	}
	for _, h := range newFull {
		if _, ok := oldSet[h]; !ok {
			added = append(added, h)
		}
	}
	for _, h := range oldFull {
		if _, ok := newSet[h]; !ok {
			removed = append(removed, h)
		}
	}
	return added, removed
}
