package worker

import (
	"context"
	"net"

	"github.com/mir00r/cluster-manager/internal/connpool"
	lberrors "github.com/mir00r/cluster-manager/internal/errors"
	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
	"github.com/mir00r/cluster-manager/pkg/logger"
)

// taskQueueDepth bounds how many pending updates a worker can lag behind
// the primary before EnqueueUpdate starts blocking its caller. Generous
// enough that a burst of startup updates (one per cluster with existing
// hosts) never stalls the primary.
const taskQueueDepth = 1024

// Worker is one execution context: it holds a private replica of every
// cluster, a connection-pool map shared across all of them, and an
// inbound task channel the primary posts membership updates to.
// Grounded on ThreadLocalClusterManagerImpl.
type Worker struct {
	id        int
	clusters  map[string]*ClusterReplica
	connPools *connpool.Map
	runtime   *runtime.Loader
	log       *logger.Logger

	tasks chan updateTask
}

// New builds a Worker with one ClusterReplica per entry in infos,
// building the local cluster's replica first so other replicas can be
// constructed with a reference to its HostSet for zone-aware routing.
// localClusterName may be empty.
func New(id int, infos []*upstream.ClusterInfo, rt *runtime.Loader, localZone, localClusterName string, log *logger.Logger) *Worker {
	w := &Worker{
		id:       id,
		clusters: make(map[string]*ClusterReplica, len(infos)),
		runtime:  rt,
		log:      log.WorkerLogger(id),
		tasks:    make(chan updateTask, taskQueueDepth),
	}
	w.connPools = connpool.NewMap(nil)

	var localHostSet *upstream.HostSet
	if localClusterName != "" {
		for _, info := range infos {
			if info.Name == localClusterName {
				replica := NewClusterReplica(info, rt.Snapshot(), localZone, nil)
				w.clusters[info.Name] = replica
				localHostSet = replica.HostSet
				break
			}
		}
	}

	for _, info := range infos {
		if info.Name == localClusterName {
			continue
		}
		w.clusters[info.Name] = NewClusterReplica(info, rt.Snapshot(), localZone, localHostSet)
	}
	return w
}

// EnqueueUpdate posts a membership update for cluster to this worker.
// Safe to call from the primary's control goroutine.
func (w *Worker) EnqueueUpdate(cluster string, full, added, removed []*upstream.Host) {
	w.tasks <- updateTask{cluster: cluster, full: full, added: added, removed: removed}
}

// Loop applies posted updates until ctx is cancelled. Each update is
// applied atomically to the target replica's HostSet, then any removed
// hosts' connection pools are purged — mirroring the member-update
// callback ThreadLocalClusterManagerImpl wires in its constructor.
func (w *Worker) Loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			w.apply(t)
		}
	}
}

func (w *Worker) apply(t updateTask) {
	replica, ok := w.clusters[t.cluster]
	if !ok {
		w.log.Warnf("update for unregistered cluster %q", t.cluster)
		return
	}
	replica.HostSet.Update(t.full, t.added, t.removed)
	for _, removed := range t.removed {
		w.connPools.Purge(removed)
	}
}

// Get returns cluster info for name, serviced entirely from this
// worker's own replica.
func (w *Worker) Get(name string) (*upstream.ClusterInfo, bool) {
	replica, ok := w.clusters[name]
	if !ok {
		return nil, false
	}
	return replica.Info, true
}

// HostSet returns the HostSet backing name's replica, for read-only
// inspection (e.g. an admin membership dump). Every worker's replica is
// equivalent, so which one answers is unspecified.
func (w *Worker) HostSet(name string) (*upstream.HostSet, bool) {
	replica, ok := w.clusters[name]
	if !ok {
		return nil, false
	}
	return replica.HostSet, true
}

// ChooseHost picks one host for name via that cluster's load balancer,
// the same selection HttpConnPool and TcpConn build on.
func (w *Worker) ChooseHost(name string) (*upstream.Host, error) {
	replica, ok := w.clusters[name]
	if !ok {
		return nil, lberrors.NewUnknownClusterError(name)
	}

	host := replica.ChooseHost()
	if host == nil {
		replica.Info.Stats.UpstreamCxNoneHealthy.Inc()
		return nil, lberrors.NewNoHealthyUpstreamError(name)
	}
	return host, nil
}

// HttpConnPool returns the pool for the host this worker's LB chooses
// for name at priority, allocating one if this is the first request to
// that host at that priority, along with the chosen host itself — the
// caller needs its address to direct the request the pool was built
// for, the same way TcpConn returns its dialed host.
func (w *Worker) HttpConnPool(name string, priority connpool.Priority) (connpool.Pool, *upstream.Host, error) {
	host, err := w.ChooseHost(name)
	if err != nil {
		return nil, nil, err
	}
	return w.connPools.PoolFor(host, priority, w.runtime.Snapshot()), host, nil
}

// TcpConn dials a TCP connection to the host this worker's LB chooses
// for name, returning (nil, nil) if no healthy host is available —
// mirroring tcpConnForCluster's (nullptr, nullptr) return, with the
// upstream_cx_none_healthy counter incremented in that case.
func (w *Worker) TcpConn(ctx context.Context, name string) (net.Conn, *upstream.Host, error) {
	replica, ok := w.clusters[name]
	if !ok {
		return nil, nil, lberrors.NewUnknownClusterError(name)
	}

	host := replica.ChooseHost()
	if host == nil {
		replica.Info.Stats.UpstreamCxNoneHealthy.Inc()
		return nil, nil, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host.Address())
	if err != nil {
		return nil, host, err
	}
	return conn, host, nil
}

// HttpAsyncClient returns an AsyncClient bound to this worker's replica
// of name, for issuing HTTP requests without the caller managing pool
// selection itself.
func (w *Worker) HttpAsyncClient(name string) (*AsyncClient, error) {
	replica, ok := w.clusters[name]
	if !ok {
		return nil, lberrors.NewUnknownClusterError(name)
	}
	return &AsyncClient{worker: w, replica: replica}, nil
}
