package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/cluster-manager/internal/connpool"
	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return log
}

func clusterInfo(name string) *upstream.ClusterInfo {
	store := stats.NewStore()
	return &upstream.ClusterInfo{
		Name:   name,
		LBType: upstream.LBRoundRobin,
		Stats:  stats.NewClusterStats(store, name),
	}
}

func TestWorkerApplyUpdatesTargetReplicaOnly(t *testing.T) {
	infoA := clusterInfo("a")
	infoB := clusterInfo("b")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{infoA, infoB}, rt, "", "", testLogger(t))

	h := upstream.NewHost(infoA, "10.0.0.1:80", "", nil)
	w.EnqueueUpdate("a", []*upstream.Host{h}, []*upstream.Host{h}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Loop(ctx)
	defer cancel()

	require.Eventually(t, func() bool {
		hs, _ := w.HostSet("a")
		return len(hs.Hosts()) == 1
	}, time.Second, 5*time.Millisecond)

	hsB, _ := w.HostSet("b")
	assert.Len(t, hsB.Hosts(), 0, "an update for cluster a must not touch cluster b's replica")
}

func TestWorkerChooseHostReturnsErrorForUnknownCluster(t *testing.T) {
	rt := runtime.NewLoader(nil, nil)
	w := New(0, nil, rt, "", "", testLogger(t))

	_, err := w.ChooseHost("missing")
	assert.Error(t, err)
}

func TestWorkerChooseHostReturnsErrorWhenNoHealthyHost(t *testing.T) {
	info := clusterInfo("a")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{info}, rt, "", "", testLogger(t))

	_, err := w.ChooseHost("a")
	assert.Error(t, err)
}

func TestWorkerGetReturnsClusterInfo(t *testing.T) {
	info := clusterInfo("a")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{info}, rt, "", "", testLogger(t))

	got, ok := w.Get("a")
	require.True(t, ok)
	assert.Same(t, info, got)

	_, ok = w.Get("missing")
	assert.False(t, ok)
}

func TestWorkerLocalClusterHostSetIsSharedForZoneRouting(t *testing.T) {
	local := clusterInfo("local")
	remote := clusterInfo("remote")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{local, remote}, rt, "us-east-1a", "local", testLogger(t))

	replicaRemote := w.clusters["remote"]
	replicaLocal := w.clusters["local"]
	assert.Same(t, replicaLocal.HostSet, replicaRemote.LocalHostSet)
}

func TestWorkerHttpConnPoolReturnsHostChosenByLoadBalancer(t *testing.T) {
	info := clusterInfo("a")
	rt := runtime.NewLoader(nil, nil)
	w := New(0, []*upstream.ClusterInfo{info}, rt, "", "", testLogger(t))

	h := upstream.NewHost(info, "10.0.0.1:80", "", nil)
	w.EnqueueUpdate("a", []*upstream.Host{h}, []*upstream.Host{h}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Loop(ctx)

	require.Eventually(t, func() bool {
		hs, _ := w.HostSet("a")
		return len(hs.Hosts()) == 1
	}, time.Second, 5*time.Millisecond)

	pool, host, err := w.HttpConnPool("a", connpool.Default)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Same(t, h, host)
}

func TestWorkerHttpConnPoolPropagatesChooseHostError(t *testing.T) {
	rt := runtime.NewLoader(nil, nil)
	w := New(0, nil, rt, "", "", testLogger(t))

	pool, host, err := w.HttpConnPool("missing", connpool.Default)
	assert.Error(t, err)
	assert.Nil(t, pool)
	assert.Nil(t, host)
}

func TestWorkerLoopStopsOnContextCancel(t *testing.T) {
	rt := runtime.NewLoader(nil, nil)
	w := New(0, nil, rt, "", "", testLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Loop(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Loop did not return after context cancellation")
	}
}
