package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterReusesVecAcrossCalls(t *testing.T) {
	store := NewStore()
	store.Counter("requests_total", "help", "cluster-a").Inc()
	store.Counter("requests_total", "help", "cluster-a").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(store.Counter("requests_total", "help", "cluster-a")))
}

func TestCounterLabelsByClusterIndependently(t *testing.T) {
	store := NewStore()
	store.Counter("requests_total", "help", "cluster-a").Inc()
	store.Counter("requests_total", "help", "cluster-b").Inc()
	store.Counter("requests_total", "help", "cluster-b").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(store.Counter("requests_total", "help", "cluster-a")))
	assert.Equal(t, float64(2), testutil.ToFloat64(store.Counter("requests_total", "help", "cluster-b")))
}

func TestGaugeSetAndGetRoundTrips(t *testing.T) {
	store := NewStore()
	store.Gauge("active_conns", "help", "cluster-a").Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(store.Gauge("active_conns", "help", "cluster-a")))
}

func TestRegistryGathersRegisteredMetrics(t *testing.T) {
	store := NewStore()
	store.Counter("requests_total", "help", "cluster-a").Inc()

	families, err := store.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, fam := range families {
		if fam.GetName() == "requests_total" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestNewClusterStatsResolvesEveryMetric(t *testing.T) {
	store := NewStore()
	cs := NewClusterStats(store, "cluster-a")

	require.NotNil(t, cs.UpstreamCxNoneHealthy)
	require.NotNil(t, cs.EjectionsTotal)
	require.NotNil(t, cs.EjectionsActive)
	require.NotNil(t, cs.EjectionsOverflow)
	require.NotNil(t, cs.EjectionsConsecutive5xx)
	require.NotNil(t, cs.HealthCheckAttempt)
	require.NotNil(t, cs.HealthCheckSuccess)
	require.NotNil(t, cs.HealthCheckFailure)

	cs.HealthCheckAttempt.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(cs.HealthCheckAttempt))
}

func TestNewClusterStatsSharesVecAcrossClusters(t *testing.T) {
	store := NewStore()
	a := NewClusterStats(store, "cluster-a")
	b := NewClusterStats(store, "cluster-b")

	a.EjectionsTotal.Inc()
	b.EjectionsTotal.Inc()
	b.EjectionsTotal.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(a.EjectionsTotal))
	assert.Equal(t, float64(2), testutil.ToFloat64(b.EjectionsTotal))
}
