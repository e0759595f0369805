package worker

import (
	"context"
	"net/http"

	"github.com/mir00r/cluster-manager/internal/connpool"
	lberrors "github.com/mir00r/cluster-manager/internal/errors"
)

// AsyncClient issues HTTP requests against one cluster on behalf of a
// caller, choosing a host and pool per request the same way HttpConnPool
// does, without the caller handling pool selection directly. Grounded on
// ClusterEntry's http_async_client_ member, with request-mirroring/shadow
// traffic left out — this repo's scope stops at cluster selection and
// pooling, not request-level routing policy.
type AsyncClient struct {
	worker  *Worker
	replica *ClusterReplica
}

// Do selects a host via the bound cluster's load balancer, obtains its
// Default-priority pool, rewrites req's target to that host, and
// executes it. The pool's transport is pinned to the same host, but
// req.URL.Host still has to name it — it's what the client logs,
// matches against TLS ServerName defaults, and sends as the Host
// header.
func (c *AsyncClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := c.replica.ChooseHost()
	if host == nil {
		c.replica.Info.Stats.UpstreamCxNoneHealthy.Inc()
		return nil, lberrors.NewNoHealthyUpstreamError(c.replica.Info.Name)
	}

	pool := c.worker.connPools.PoolFor(host, connpool.Default, c.worker.runtime.Snapshot())

	req.URL.Host = host.Address()
	req.Host = ""

	var resp *http.Response
	err := pool.NewStream(ctx, func(ctx context.Context, client *http.Client) error {
		r, err := client.Do(req.WithContext(ctx))
		resp = r
		return err
	})
	return resp, err
}
