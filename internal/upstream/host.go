// Package upstream holds the cluster manager's core data model: Host,
// HostSet and ClusterInfo. Hosts are immutable-identity value objects —
// if an address reappears after removal, a new *Host is allocated, never
// reusing the stale pointer. Identity equality is therefore simply Go
// pointer equality, which is exactly what ConnPoolsContainer relies on
// to key its map (see internal/connpool).
package upstream

import (
	"sync"
	"sync/atomic"
)

// Features is a bitset of optional cluster capabilities.
type Features uint32

const (
	// FeatureHTTP2 marks a cluster whose hosts may be spoken to over
	// HTTP/2, subject to the upstream.use_http2 runtime roll.
	FeatureHTTP2 Features = 1 << iota
	// FeatureTLS marks a cluster reached over TLS; ClusterInfo.UpstreamTLS
	// carries the *tls.Config connpool wraps its transport with.
	FeatureTLS
)

// Host is one backend endpoint. It carries a non-owning back-link to its
// owning cluster's immutable info, its zone, and mutable health flags
// that only the primary-side health checker and outlier detector write;
// workers only ever read them off a HostSet snapshot.
type Host struct {
	// address is atomic because LogicalDnsCluster mutates it in place on
	// re-resolution, while the hot path (LB selection, pool lookup) reads
	// it without locking. Static and StrictDns never call SetAddress —
	// for them a changed address always means a new Host.
	address atomic.Pointer[string]

	Cluster  *ClusterInfo
	Zone     string
	Metadata map[string]string

	// healthMu serializes health-flag transitions driven by the health
	// checker and the outlier detector: both can observe and flip flags
	// concurrently, and a per-host mutex is the simplest way to keep
	// their relative ordering well defined.
	healthMu sync.Mutex

	failedActiveCheck int32 // atomic bool: set by the HealthChecker
	outlierEjected    int32 // atomic bool: set by the OutlierDetector

	activeRequests int64  // atomic: read by LeastRequest, written by callers around a request
	consecutive5xx uint32 // atomic: consecutive 5xx counter for outlier detection
}

// NewHost creates a new Host instance. Callers must never reuse a Host
// for an address that was previously removed; construct a fresh one.
func NewHost(cluster *ClusterInfo, address, zone string, metadata map[string]string) *Host {
	h := &Host{Cluster: cluster, Zone: zone, Metadata: metadata}
	h.address.Store(&address)
	return h
}

// Address returns the host's current network address.
func (h *Host) Address() string { return *h.address.Load() }

// SetAddress atomically replaces the host's address in place, preserving
// its identity. Only LogicalDnsCluster calls this, on each on-demand
// re-resolution; every other cluster type allocates a new Host instead.
func (h *Host) SetAddress(addr string) { h.address.Store(&addr) }

// IsHealthy reports whether the host is eligible for selection: neither
// failing its active health check nor passively ejected.
func (h *Host) IsHealthy() bool {
	return atomic.LoadInt32(&h.failedActiveCheck) == 0 && atomic.LoadInt32(&h.outlierEjected) == 0
}

// FailedActiveCheck reports the active-health-check flag alone.
func (h *Host) FailedActiveCheck() bool {
	return atomic.LoadInt32(&h.failedActiveCheck) != 0
}

// OutlierEjected reports the passive-ejection flag alone.
func (h *Host) OutlierEjected() bool {
	return atomic.LoadInt32(&h.outlierEjected) != 0
}

// SetFailedActiveCheck is called by the HealthChecker on a state
// transition out of Healthy or back into it.
func (h *Host) SetFailedActiveCheck(failed bool) {
	h.healthMu.Lock()
	defer h.healthMu.Unlock()
	if failed {
		atomic.StoreInt32(&h.failedActiveCheck, 1)
	} else {
		atomic.StoreInt32(&h.failedActiveCheck, 0)
	}
}

// SetOutlierEjected is called by the OutlierDetector on ejection/un-ejection.
func (h *Host) SetOutlierEjected(ejected bool) {
	h.healthMu.Lock()
	defer h.healthMu.Unlock()
	if ejected {
		atomic.StoreInt32(&h.outlierEjected, 1)
	} else {
		atomic.StoreInt32(&h.outlierEjected, 0)
	}
}

// IncrementActiveRequests is called when a request is dispatched to this host.
func (h *Host) IncrementActiveRequests() { atomic.AddInt64(&h.activeRequests, 1) }

// DecrementActiveRequests is called when a request to this host completes.
func (h *Host) DecrementActiveRequests() { atomic.AddInt64(&h.activeRequests, -1) }

// ActiveRequests returns the current number of in-flight requests to this host.
func (h *Host) ActiveRequests() int64 { return atomic.LoadInt64(&h.activeRequests) }

// RecordResponseCode feeds one HTTP status code into the consecutive-5xx
// counter used by outlier detection, returning the counter's new value.
// Any non-5xx response resets the counter to zero.
func (h *Host) RecordResponseCode(statusCode int) uint32 {
	if statusCode >= 500 && statusCode < 600 {
		return atomic.AddUint32(&h.consecutive5xx, 1)
	}
	atomic.StoreUint32(&h.consecutive5xx, 0)
	return 0
}

// Consecutive5xx returns the current consecutive-5xx counter value.
func (h *Host) Consecutive5xx() uint32 { return atomic.LoadUint32(&h.consecutive5xx) }
