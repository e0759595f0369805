package loadbalancer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

func hostsFor(n int) (*upstream.HostSet, []*upstream.Host) {
	info := &upstream.ClusterInfo{Name: "cluster-a"}
	hosts := make([]*upstream.Host, n)
	for i := range hosts {
		hosts[i] = upstream.NewHost(info, "10.0.0.1:80", "", nil)
	}
	hs := upstream.NewHostSet()
	hs.Update(hosts, hosts, nil)
	return hs, hosts
}

func TestRoundRobinPolicyCyclesInOrder(t *testing.T) {
	hs, hosts := hostsFor(3)
	rt := runtime.NewLoader(nil, nil)
	policy := NewRoundRobinPolicy(rt.Snapshot(), "")

	var picked []*upstream.Host
	for i := 0; i < 6; i++ {
		picked = append(picked, policy.Choose(hs, nil))
	}

	expected := []*upstream.Host{hosts[0], hosts[1], hosts[2], hosts[0], hosts[1], hosts[2]}
	assert.Equal(t, expected, picked)
}

func TestRoundRobinPolicyReturnsNilWhenNoHosts(t *testing.T) {
	hs := upstream.NewHostSet()
	rt := runtime.NewLoader(nil, nil)
	policy := NewRoundRobinPolicy(rt.Snapshot(), "")
	assert.Nil(t, policy.Choose(hs, nil))
}

func TestRoundRobinPolicyFallsBackToFullVectorInPanicMode(t *testing.T) {
	hs, hosts := hostsFor(4)
	for _, h := range hosts[:3] {
		h.SetFailedActiveCheck(true)
	}
	hs.Update(hosts, nil, nil)

	rt := runtime.NewLoader(nil, nil)
	policy := NewRoundRobinPolicy(rt.Snapshot(), "")

	seen := make(map[*upstream.Host]bool)
	for i := 0; i < 8; i++ {
		seen[policy.Choose(hs, nil)] = true
	}
	assert.Len(t, seen, 4, "panic mode should select from the full vector, not just the one healthy host")
}

func TestLeastRequestPolicyPrefersFewerActiveRequests(t *testing.T) {
	hs, hosts := hostsFor(2)
	hosts[0].IncrementActiveRequests()
	hosts[0].IncrementActiveRequests()

	rt := runtime.NewLoader(nil, nil)
	policy := NewLeastRequestPolicy(rt.Snapshot())

	picks := make(map[*upstream.Host]int)
	for i := 0; i < 200; i++ {
		picked := policy.Choose(hs, nil)
		require.NotNil(t, picked)
		picks[picked]++
	}
	// hosts[1] has strictly fewer active requests, so every "power of
	// two" comparison that draws it picks it; hosts[0] only wins when
	// both draws land on it.
	assert.Greater(t, picks[hosts[1]], picks[hosts[0]])
}

func TestRandomPolicyOnlyPicksFromHealthyVector(t *testing.T) {
	hs, hosts := hostsFor(3)
	hosts[0].SetFailedActiveCheck(true)
	hosts[1].SetFailedActiveCheck(true)
	hs.Update(hosts, nil, nil)

	// One healthy host in three is below the default panic threshold;
	// a threshold of 0 keeps selection on the healthy vector.
	rt := runtime.NewLoader(nil, map[string]int{"upstream.panic_threshold_percent": 0})
	policy := NewRandomPolicy(rt.Snapshot(), "")

	for i := 0; i < 10; i++ {
		assert.Same(t, hosts[2], policy.Choose(hs, nil))
	}
}

func TestZoneRestrictNarrowsToLocalZoneWhenHealthy(t *testing.T) {
	info := &upstream.ClusterInfo{Name: "cluster-a"}
	local := upstream.NewHost(info, "10.0.0.1:80", "us-east-1a", nil)
	remote := upstream.NewHost(info, "10.0.0.2:80", "us-east-1b", nil)

	localHostSet := upstream.NewHostSet()
	localHostSet.Update([]*upstream.Host{local}, []*upstream.Host{local}, nil)

	hs := upstream.NewHostSet()
	hosts := []*upstream.Host{local, remote}
	hs.Update(hosts, hosts, nil)

	rt := runtime.NewLoader(nil, nil)
	policy := NewRoundRobinPolicy(rt.Snapshot(), "us-east-1a")

	for i := 0; i < 4; i++ {
		assert.Same(t, local, policy.Choose(hs, localHostSet))
	}
}

func TestZoneRestrictFallsBackWhenLocalZoneUnhealthy(t *testing.T) {
	info := &upstream.ClusterInfo{Name: "cluster-a"}
	local := upstream.NewHost(info, "10.0.0.1:80", "us-east-1a", nil)
	local.SetFailedActiveCheck(true)
	remote := upstream.NewHost(info, "10.0.0.2:80", "us-east-1b", nil)

	localHostSet := upstream.NewHostSet()
	localHosts := []*upstream.Host{local}
	localHostSet.Update(localHosts, localHosts, nil)

	hs := upstream.NewHostSet()
	hosts := []*upstream.Host{local, remote}
	hs.Update(hosts, hosts, nil)

	rt := runtime.NewLoader(nil, nil)
	policy := NewRoundRobinPolicy(rt.Snapshot(), "us-east-1a")

	seen := make(map[*upstream.Host]bool)
	for i := 0; i < 8; i++ {
		seen[policy.Choose(hs, localHostSet)] = true
	}
	assert.True(t, seen[remote], "zone floor breach should widen candidates back past the local zone")
}

func TestNewPolicySelectsByLBType(t *testing.T) {
	rt := runtime.NewLoader(nil, nil)

	_, ok := NewPolicy(upstream.LBLeastRequest, rt.Snapshot(), "").(*LeastRequestPolicy)
	assert.True(t, ok)

	_, ok = NewPolicy(upstream.LBRandom, rt.Snapshot(), "").(*RandomPolicy)
	assert.True(t, ok)

	_, ok = NewPolicy(upstream.LBRoundRobin, rt.Snapshot(), "").(*RoundRobinPolicy)
	assert.True(t, ok)

	_, ok = NewPolicy(upstream.LBType("unrecognized"), rt.Snapshot(), "").(*RoundRobinPolicy)
	assert.True(t, ok, "an unrecognized lb_type defaults to round robin")
}
