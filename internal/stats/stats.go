// Package stats implements the StatsStore collaborator contract using
// github.com/prometheus/client_golang — counters, gauges and histograms
// allocated by name and cached for reuse, one prometheus.Registry per
// ClusterManager.
package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Store allocates and caches named Prometheus metrics for one cluster
// manager instance.
type Store struct {
	registry *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewStore creates a Store backed by a fresh registry.
func NewStore() *Store {
	return &Store{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Registry returns the underlying Prometheus registry, e.g. to mount on
// an admin HTTP handler.
func (s *Store) Registry() *prometheus.Registry { return s.registry }

// Counter returns (creating if needed) a counter named name, labeled by
// "cluster", and returns its child for the given cluster. It does not
// increment the counter.
func (s *Store) Counter(name, help, cluster string) prometheus.Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec, ok := s.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, []string{"cluster"})
		s.registry.MustRegister(vec)
		s.counters[name] = vec
	}
	return vec.WithLabelValues(cluster)
}

// Gauge returns (creating if needed) a gauge named name, labeled by
// "cluster".
func (s *Store) Gauge(name, help, cluster string) prometheus.Gauge {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec, ok := s.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, []string{"cluster"})
		s.registry.MustRegister(vec)
		s.gauges[name] = vec
	}
	return vec.WithLabelValues(cluster)
}

// Histogram returns (creating if needed) a histogram named name, labeled
// by "cluster".
func (s *Store) Histogram(name, help, cluster string) prometheus.Observer {
	s.mu.Lock()
	defer s.mu.Unlock()

	vec, ok := s.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help}, []string{"cluster"})
		s.registry.MustRegister(vec)
		s.histograms[name] = vec
	}
	return vec.WithLabelValues(cluster)
}

// ClusterStats bundles the minimum observable stats for one cluster,
// pre-resolved against a Store so call sites never build label sets on
// the hot path.
type ClusterStats struct {
	UpstreamCxNoneHealthy    prometheus.Counter
	EjectionsTotal           prometheus.Counter
	EjectionsActive          prometheus.Gauge
	EjectionsOverflow        prometheus.Counter
	EjectionsConsecutive5xx  prometheus.Counter
	HealthCheckAttempt       prometheus.Counter
	HealthCheckSuccess       prometheus.Counter
	HealthCheckFailure       prometheus.Counter
}

// NewClusterStats resolves every metric a cluster needs against store.
func NewClusterStats(store *Store, cluster string) *ClusterStats {
	return &ClusterStats{
		UpstreamCxNoneHealthy:   store.Counter("upstream_cx_none_healthy", "Requests for which no healthy host was available", cluster),
		EjectionsTotal:          store.Counter("outlier_detection_ejections_total", "Total outlier ejections", cluster),
		EjectionsActive:         store.Gauge("outlier_detection_ejections_active", "Currently ejected hosts", cluster),
		EjectionsOverflow:       store.Counter("outlier_detection_ejections_overflow", "Ejections refused by the ejection cap", cluster),
		EjectionsConsecutive5xx: store.Counter("outlier_detection_ejections_consecutive_5xx", "Ejections triggered by consecutive 5xx", cluster),
		HealthCheckAttempt:      store.Counter("health_check_attempt", "Active health check attempts", cluster),
		HealthCheckSuccess:      store.Counter("health_check_success", "Active health check successes", cluster),
		HealthCheckFailure:      store.Counter("health_check_failure", "Active health check failures", cluster),
	}
}
