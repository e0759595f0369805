// Package manager implements the primary-side ClusterManager: it loads
// the configured clusters, drives their discovery mechanisms, and fans
// out every membership change to a fixed pool of workers, each holding
// its own lock-free replica of cluster state for the hot request path.
// Grounded on ClusterManagerImpl in cluster_manager_impl.cc.
package manager

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/mir00r/cluster-manager/internal/cluster"
	"github.com/mir00r/cluster-manager/internal/connpool"
	"github.com/mir00r/cluster-manager/internal/dnsresolver"
	lberrors "github.com/mir00r/cluster-manager/internal/errors"
	"github.com/mir00r/cluster-manager/internal/healthcheck"
	"github.com/mir00r/cluster-manager/internal/outlier"
	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/stats"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/internal/worker"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// entry bundles everything the manager keeps per registered cluster:
// the discovery-driving Cluster, its optional active health checker and
// outlier detector, and whether it was declared with type "sds" (and so
// has its Initialize deferred until every other cluster is up).
type entry struct {
	cluster     cluster.Cluster
	healthCheck *healthcheck.Checker
	outlier     *outlier.Detector
	isSds       bool
}

// Manager is the primary ClusterManager. One instance owns every
// cluster's discovery goroutines and the full pool of workers; callers
// on the request path always go through a Worker, never through Manager
// directly.
type Manager struct {
	log      *logger.Logger
	stats    *stats.Store
	runtime  *runtime.Loader
	resolver dnsresolver.Resolver

	mu       sync.Mutex
	clusters map[string]*entry
	order    []string

	workers  []*worker.Worker
	nextWork atomic.Uint64

	initMu      sync.Mutex
	pendingInit int
	numSds      int
	onInit      func()
	initFired   bool
}

// New creates an empty Manager. rt may be nil, in which case a Loader
// with no overrides is used.
func New(log *logger.Logger, store *stats.Store, rt *runtime.Loader) *Manager {
	if rt == nil {
		rt = runtime.NewLoader(nil, nil)
	}
	return &Manager{
		log:      log.ManagerLogger(),
		stats:    store,
		runtime:  rt,
		clusters: make(map[string]*entry),
	}
}

// SetInitializedCallback registers cb to fire exactly once, after every
// registered cluster — including SDS-discovered ones, once their
// backing cluster lets them start — completes its first discovery pass.
// Must be called before Load.
func (m *Manager) SetInitializedCallback(cb func()) {
	m.initMu.Lock()
	defer m.initMu.Unlock()
	m.onInit = cb
}

// Load validates cfg, registers every cluster and its collaborators, and
// starts discovery. Non-SDS clusters (including the SDS backing cluster,
// if configured) initialize immediately and concurrently; SDS-type
// clusters wait until the pending-init counter says every one of those
// has finished its first pass.
func (m *Manager) Load(ctx context.Context, cfg Config) error {
	if err := validate(cfg); err != nil {
		return err
	}

	m.resolver = dnsresolver.New(cfg.DNSResolver)

	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
	}

	var eventLogger outlier.EventLogger
	if cfg.OutlierEventLogPath != "" {
		fl, err := outlier.NewFileEventLogger(cfg.OutlierEventLogPath)
		if err != nil {
			return lberrors.NewConfigError("manager", fmt.Sprintf("opening outlier event log: %v", err))
		}
		eventLogger = fl
	}

	numSds := 0
	for _, spec := range cfg.Clusters {
		if spec.Cluster.Type == cluster.TypeSds {
			numSds++
		}
	}

	m.initMu.Lock()
	m.pendingInit = len(cfg.Clusters)
	if cfg.Sds != nil {
		m.pendingInit++
	}
	m.numSds = numSds
	m.initMu.Unlock()

	infos := make([]*upstream.ClusterInfo, 0, len(cfg.Clusters)+1)

	register := func(spec ClusterSpec, isSds bool) (*entry, error) {
		info, err := m.buildClusterInfo(spec)
		if err != nil {
			return nil, err
		}
		c, err := m.buildCluster(info, spec)
		if err != nil {
			return nil, err
		}

		e := &entry{cluster: c, isSds: isSds}
		if spec.HealthCheck != nil {
			e.healthCheck = healthcheck.New(*spec.HealthCheck, c.HostSet(), info.Stats, m.log.HealthCheckLogger())
		}
		if spec.OutlierDetect != nil {
			e.outlier = outlier.New(*spec.OutlierDetect, c.HostSet(), info.Stats, eventLogger, m.log.OutlierLogger())
		}
		c.AddMemberUpdateCallback(func(added, removed []*upstream.Host) {
			m.broadcast(info.Name, c.HostSet().Hosts(), added, removed)
		})

		m.mu.Lock()
		m.clusters[info.Name] = e
		m.order = append(m.order, info.Name)
		m.mu.Unlock()

		infos = append(infos, info)
		return e, nil
	}

	if cfg.Sds != nil {
		if _, err := register(cfg.Sds.Cluster, false); err != nil {
			return err
		}
	}
	for _, spec := range cfg.Clusters {
		isSds := spec.Cluster.Type == cluster.TypeSds
		if _, err := register(spec, isSds); err != nil {
			return err
		}
	}

	m.workers = make([]*worker.Worker, workerCount)
	for i := range m.workers {
		m.workers[i] = worker.New(i, infos, m.runtime, cfg.LocalZoneName, cfg.LocalClusterName, m.log)
	}

	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	for _, name := range names {
		m.mu.Lock()
		e := m.clusters[name]
		m.mu.Unlock()
		if e.isSds {
			continue
		}
		go func() {
			if err := e.cluster.Initialize(ctx, func() { m.onClusterInitialized(ctx) }); err != nil {
				m.log.WithError(err).Errorf("cluster %q failed to initialize", e.cluster.Info().Name)
			}
			if e.healthCheck != nil {
				e.healthCheck.Start(ctx)
			}
			if e.outlier != nil {
				e.outlier.Start()
			}
		}()
	}

	return nil
}

// onClusterInitialized decrements the pending-init counter. When it
// reaches the number of still-waiting SDS clusters, every SDS cluster is
// told to initialize. When it reaches zero, the registered callback
// fires — both transitions happen at most once.
func (m *Manager) onClusterInitialized(ctx context.Context) {
	m.initMu.Lock()
	m.pendingInit--
	pending := m.pendingInit
	numSds := m.numSds
	cb := m.onInit
	fired := m.initFired
	if pending == 0 {
		m.initFired = true
	}
	m.initMu.Unlock()

	if pending == numSds && numSds > 0 {
		m.startSdsClusters(ctx)
	}
	if pending == 0 && !fired && cb != nil {
		cb()
	}
}

func (m *Manager) startSdsClusters(ctx context.Context) {
	m.mu.Lock()
	var toStart []*entry
	for _, name := range m.order {
		e := m.clusters[name]
		if e.isSds {
			toStart = append(toStart, e)
		}
	}
	m.mu.Unlock()

	for _, e := range toStart {
		e := e
		go func() {
			if err := e.cluster.Initialize(ctx, func() { m.onClusterInitialized(ctx) }); err != nil {
				m.log.WithError(err).Errorf("sds cluster %q failed to initialize", e.cluster.Info().Name)
			}
			if e.healthCheck != nil {
				e.healthCheck.Start(ctx)
			}
			if e.outlier != nil {
				e.outlier.Start()
			}
		}()
	}
}

// broadcast posts cluster's membership update to every worker.
func (m *Manager) broadcast(name string, full, added, removed []*upstream.Host) {
	for _, w := range m.workers {
		w.EnqueueUpdate(name, full, added, removed)
	}
}

// RunWorkers starts every worker's apply loop; blocks until ctx is
// cancelled, then waits for all of them to drain.
func (m *Manager) RunWorkers(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(len(m.workers))
	for _, w := range m.workers {
		w := w
		go func() {
			defer wg.Done()
			w.Loop(ctx)
		}()
	}
	wg.Wait()
}

// Get returns the static identity/config for a registered cluster,
// independent of any worker.
func (m *Manager) Get(name string) (*upstream.ClusterInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.clusters[name]
	if !ok {
		return nil, false
	}
	return e.cluster.Info(), true
}

// ClusterNames returns every registered cluster's name, in registration
// order (SDS backing cluster first, if configured).
func (m *Manager) ClusterNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// HostSet returns name's HostSet as seen by one of the worker pool's
// replicas, for read-only inspection such as an admin membership dump.
func (m *Manager) HostSet(name string) (*upstream.HostSet, bool) {
	return m.worker().HostSet(name)
}

// StatsRegistry returns the stats store backing every cluster's stats;
// its Registry method yields the Prometheus registry for an admin HTTP
// handler.
func (m *Manager) StatsRegistry() *stats.Store {
	return m.stats
}

// worker returns one of the manager's workers, cycling round-robin
// across calls. Every worker holds an equivalent replica, so which one
// answers a given request is an implementation detail.
func (m *Manager) worker() *worker.Worker {
	n := m.nextWork.Add(1)
	return m.workers[(n-1)%uint64(len(m.workers))]
}

// HttpConnPool returns a connection pool for name at priority, plus the
// host it was allocated for, serviced by this manager's worker pool.
func (m *Manager) HttpConnPool(name string, priority connpool.Priority) (connpool.Pool, *upstream.Host, error) {
	return m.worker().HttpConnPool(name, priority)
}

// TcpConn dials a TCP connection to a host chosen for name.
func (m *Manager) TcpConn(ctx context.Context, name string) (net.Conn, *upstream.Host, error) {
	return m.worker().TcpConn(ctx, name)
}

// HttpAsyncClient returns an AsyncClient bound to name.
func (m *Manager) HttpAsyncClient(name string) (*worker.AsyncClient, error) {
	return m.worker().HttpAsyncClient(name)
}

// Shutdown stops every cluster's discovery goroutine and detector/health
// checker loops.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.clusters {
		if e.healthCheck != nil {
			e.healthCheck.Stop()
		}
		if e.outlier != nil {
			e.outlier.Close()
		}
		e.cluster.Shutdown()
	}
}
