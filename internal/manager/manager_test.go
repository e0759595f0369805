package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/cluster-manager/internal/cluster"
	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func startManager(t *testing.T, cfg Config) (*Manager, context.CancelFunc) {
	t.Helper()
	m := New(testLogger(t), stats.NewStore(), nil)

	ready := make(chan struct{})
	m.SetInitializedCallback(func() { close(ready) })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Load(ctx, cfg))
	go m.RunWorkers(ctx)

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("manager never signaled initialized")
	}
	return m, cancel
}

func TestManagerStaticClusterServesRoundRobin(t *testing.T) {
	cfg := Config{
		WorkerCount: 1,
		Clusters: []ClusterSpec{{
			Cluster: cluster.Config{
				Name:   "cluster-a",
				Type:   cluster.TypeStatic,
				LBType: "round_robin",
				Hosts: []cluster.HostConfig{
					{Address: "10.0.0.1:80"},
					{Address: "10.0.0.2:80"},
				},
			},
		}},
	}

	m, cancel := startManager(t, cfg)
	defer func() { cancel(); m.Shutdown() }()

	// The initialized callback tracks primary-side discovery; the worker
	// applies its queued membership update on its own loop.
	require.Eventually(t, func() bool {
		hs, ok := m.workers[0].HostSet("cluster-a")
		return ok && len(hs.HealthyHosts()) == 2
	}, time.Second, 5*time.Millisecond)

	var seen []string
	for i := 0; i < 4; i++ {
		host, err := m.worker().ChooseHost("cluster-a")
		require.NoError(t, err)
		seen = append(seen, host.Address())
	}
	assert.Equal(t, []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.1:80", "10.0.0.2:80"}, seen)
}

func TestManagerGetReturnsRegisteredClusterInfo(t *testing.T) {
	cfg := Config{
		WorkerCount: 1,
		Clusters: []ClusterSpec{{
			Cluster: cluster.Config{Name: "cluster-a", Type: cluster.TypeStatic, LBType: "round_robin"},
		}},
	}
	m, cancel := startManager(t, cfg)
	defer func() { cancel(); m.Shutdown() }()

	info, ok := m.Get("cluster-a")
	require.True(t, ok)
	assert.Equal(t, "cluster-a", info.Name)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManagerClusterNamesPreservesRegistrationOrder(t *testing.T) {
	cfg := Config{
		WorkerCount: 1,
		Clusters: []ClusterSpec{
			{Cluster: cluster.Config{Name: "cluster-a", Type: cluster.TypeStatic}},
			{Cluster: cluster.Config{Name: "cluster-b", Type: cluster.TypeStatic}},
		},
	}
	m, cancel := startManager(t, cfg)
	defer func() { cancel(); m.Shutdown() }()

	assert.Equal(t, []string{"cluster-a", "cluster-b"}, m.ClusterNames())
}

func TestManagerBroadcastsMembershipToEveryWorker(t *testing.T) {
	cfg := Config{
		WorkerCount: 3,
		Clusters: []ClusterSpec{{
			Cluster: cluster.Config{
				Name: "cluster-a", Type: cluster.TypeStatic, LBType: "round_robin",
				Hosts: []cluster.HostConfig{{Address: "10.0.0.1:80"}, {Address: "10.0.0.2:80"}},
			},
		}},
	}
	m, cancel := startManager(t, cfg)
	defer func() { cancel(); m.Shutdown() }()

	require.Eventually(t, func() bool {
		for _, w := range m.workers {
			hs, ok := w.HostSet("cluster-a")
			if !ok || len(hs.Hosts()) != 2 {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestManagerRejectsDuplicateClusterNames(t *testing.T) {
	cfg := Config{
		Clusters: []ClusterSpec{
			{Cluster: cluster.Config{Name: "cluster-a", Type: cluster.TypeStatic}},
			{Cluster: cluster.Config{Name: "cluster-a", Type: cluster.TypeStatic}},
		},
	}
	m := New(testLogger(t), stats.NewStore(), nil)
	err := m.Load(context.Background(), cfg)
	assert.Error(t, err)
}

func TestManagerRejectsSdsClusterWithUnregisteredBackingCluster(t *testing.T) {
	cfg := Config{
		Sds: &SdsSpec{Cluster: ClusterSpec{Cluster: cluster.Config{Name: "sds-backend", Type: cluster.TypeStatic}}},
		Clusters: []ClusterSpec{{
			Cluster: cluster.Config{Name: "cluster-a", Type: cluster.TypeSds, SdsBackingCluster: "missing"},
		}},
	}
	m := New(testLogger(t), stats.NewStore(), nil)
	err := m.Load(context.Background(), cfg)
	assert.Error(t, err)
}

func TestManagerRejectsSdsClusterWithNoSdsConfig(t *testing.T) {
	cfg := Config{
		Clusters: []ClusterSpec{
			{Cluster: cluster.Config{Name: "cluster-a", Type: cluster.TypeStatic}},
			{Cluster: cluster.Config{Name: "discovered", Type: cluster.TypeSds, SdsBackingCluster: "cluster-a"}},
		},
	}
	m := New(testLogger(t), stats.NewStore(), nil)
	err := m.Load(context.Background(), cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no sds config")
}

func TestManagerInitializedCallbackWaitsForSdsClusterAfterBackingCluster(t *testing.T) {
	cfg := Config{
		WorkerCount: 1,
		Sds: &SdsSpec{
			Cluster: ClusterSpec{Cluster: cluster.Config{
				Name: "sds-backend", Type: cluster.TypeStatic, LBType: "round_robin",
				Hosts: []cluster.HostConfig{{Address: "127.0.0.1:0"}},
			}},
			RefreshDelayMs: 1000,
		},
		Clusters: []ClusterSpec{
			{Cluster: cluster.Config{
				Name: "discovered", Type: cluster.TypeSds, SdsBackingCluster: "sds-backend",
				SdsRefreshRateMs: 50,
			}},
		},
	}

	m, cancel := startManager(t, cfg)
	defer func() { cancel(); m.Shutdown() }()

	// By the time SetInitializedCallback fires, both clusters —
	// including the SDS one, whose Initialize the manager deliberately
	// deferred — must be registered.
	names := m.ClusterNames()
	assert.Contains(t, names, "sds-backend")
	assert.Contains(t, names, "discovered")
}
