package connpool

import (
	"sync"

	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

// Container is the per-host bundle of priority-indexed pools: a
// fixed-size array indexed by priority, plus drainsRemaining, a counter
// used during drain. Grounded on ConnPoolsContainer.
type Container struct {
	mu              sync.Mutex
	pools           [numPriorities]Pool
	drainsRemaining int
}

func (c *Container) poolAt(priority Priority, alloc func() Pool) Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pools[priority] == nil {
		c.pools[priority] = alloc()
	}
	return c.pools[priority]
}

// Map is the per-worker host→Container map, shared across every cluster
// replica of that worker. Keyed by Host pointer identity — a
// re-resolved address always gets a new Host, so a stale entry here can
// never be mistaken for the new one.
type Map struct {
	mu      sync.Mutex
	byHost  map[*upstream.Host]*Container
	onEmpty func(host *upstream.Host, container *Container)
}

// NewMap builds an empty Map. onEmpty, if non-nil, is called once a
// container's last draining pool finishes and the container is removed
// — the hook a worker uses to run deferred deletion bookkeeping (e.g.
// metrics) beyond simply dropping the map entry.
func NewMap(onEmpty func(host *upstream.Host, container *Container)) *Map {
	return &Map{byHost: make(map[*upstream.Host]*Container), onEmpty: onEmpty}
}

// PoolFor finds or creates the Container for host, then finds or
// allocates the pool at priority, allocating HTTP/2 or HTTP/1 per the
// cluster's feature bits and the runtime roll.
func (m *Map) PoolFor(host *upstream.Host, priority Priority, rt *runtime.Snapshot) Pool {
	m.mu.Lock()
	container, ok := m.byHost[host]
	if !ok {
		container = &Container{}
		m.byHost[host] = container
	}
	m.mu.Unlock()

	return container.poolAt(priority, func() Pool { return Allocate(host, rt) })
}

// Purge drains and eventually erases the Container for a host that was
// just removed from the cluster's membership. Mirrors drainConnPools: it
// counts the non-nil pools, calls Drain on each, and only removes the
// map entry once every pool has reported drained via its callback.
// A host with no container (no pool was ever requested for it) is a
// no-op.
func (m *Map) Purge(host *upstream.Host) {
	m.mu.Lock()
	container, ok := m.byHost[host]
	m.mu.Unlock()
	if !ok {
		return
	}

	container.mu.Lock()
	var active []Pool
	for _, p := range container.pools {
		if p != nil {
			active = append(active, p)
		}
	}
	container.drainsRemaining = len(active)
	container.mu.Unlock()

	if len(active) == 0 {
		m.erase(host, container)
		return
	}

	for _, p := range active {
		p.AddDrainedCallback(func() {
			container.mu.Lock()
			container.drainsRemaining--
			done := container.drainsRemaining == 0
			container.mu.Unlock()
			if done {
				m.erase(host, container)
			}
		})
		p.Drain()
	}
}

func (m *Map) erase(host *upstream.Host, container *Container) {
	m.mu.Lock()
	delete(m.byHost, host)
	m.mu.Unlock()
	if m.onEmpty != nil {
		m.onEmpty(host, container)
	}
}
