// Package runtime implements the Runtime collaborator contract: a
// live-reloadable snapshot of feature percentages and integer overrides,
// consulted by load balancers (panic-mode threshold, zone-aware routing
// floor) and the connection-pool allocator (upstream.use_http2 roll).
// The outlier detector does not read it: its consecutive-5xx threshold
// and ejection-cap floor come from outlier.Config, fixed at Load.
package runtime

import (
	"hash/fnv"
	"sync/atomic"
)

// Snapshot is an immutable view of the runtime's current values.
type Snapshot struct {
	percentages map[string]int
	integers    map[string]int
}

// GetInteger returns the configured integer override for key, or def.
func (s *Snapshot) GetInteger(key string, def int) int {
	if s == nil {
		return def
	}
	if v, ok := s.integers[key]; ok {
		return v
	}
	return def
}

// FeatureEnabled reports whether key is enabled, using a deterministic
// roll so repeated calls with the same roll key are stable. defaultPercent
// is used when key has no override configured.
func (s *Snapshot) FeatureEnabled(key string, defaultPercent int) bool {
	return s.FeatureEnabledForID(key, defaultPercent, key)
}

// FeatureEnabledForID rolls a deterministic percentage gate keyed by
// rollID (e.g. a host address), so the same host consistently lands on
// the same side of the roll across calls.
func (s *Snapshot) FeatureEnabledForID(key string, defaultPercent int, rollID string) bool {
	percent := defaultPercent
	if s != nil {
		if v, ok := s.percentages[key]; ok {
			percent = v
		}
	}
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(rollID))
	return int(h.Sum32()%100) < percent
}

// Loader is the Runtime collaborator: an atomically-swappable source of
// feature flags and integer overrides, safe to read from any worker
// without locking.
type Loader struct {
	snapshot atomic.Pointer[Snapshot]
}

// NewLoader creates a Loader with the given initial overrides.
func NewLoader(percentages, integers map[string]int) *Loader {
	l := &Loader{}
	l.Set(percentages, integers)
	return l
}

// Snapshot returns the current immutable snapshot.
func (l *Loader) Snapshot() *Snapshot {
	s := l.snapshot.Load()
	if s == nil {
		return &Snapshot{}
	}
	return s
}

// Set atomically replaces the runtime's overrides.
func (l *Loader) Set(percentages, integers map[string]int) {
	next := &Snapshot{
		percentages: copyIntMap(percentages),
		integers:    copyIntMap(integers),
	}
	l.snapshot.Store(next)
}

// SetInteger atomically overrides a single integer key, preserving the
// rest of the current snapshot.
func (l *Loader) SetInteger(key string, value int) {
	cur := l.Snapshot()
	integers := copyIntMap(cur.integers)
	integers[key] = value
	l.Set(cur.percentages, integers)
}

// SetPercentage atomically overrides a single feature percentage,
// preserving the rest of the current snapshot.
func (l *Loader) SetPercentage(key string, percent int) {
	cur := l.Snapshot()
	percentages := copyIntMap(cur.percentages)
	percentages[key] = percent
	l.Set(percentages, cur.integers)
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
