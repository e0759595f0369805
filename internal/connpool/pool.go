// Package connpool implements the per-host connection pool abstraction
// and the per-worker ConnPoolsContainer/drain protocol. Grounded on
// cluster_manager_impl.cc's ConnPoolsContainer, drainConnPools, and
// allocateConnPool.
package connpool

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/http2"

	"github.com/mir00r/cluster-manager/internal/runtime"
	"github.com/mir00r/cluster-manager/internal/upstream"
)

// Priority indexes ConnPoolsContainer's fixed-size pool slot array.
type Priority int

const (
	Default Priority = iota
	High
	numPriorities
)

// Pool is one connection pool bound to exactly one host. The same pool
// serves every stream a worker opens to that host at one priority.
type Pool interface {
	// NewStream runs fn with a client bound to this pool's connection(s),
	// counting the call as in-flight for drain purposes for its
	// duration. Returns errPoolDraining without calling fn if the pool
	// has already started draining.
	NewStream(ctx context.Context, fn func(ctx context.Context, client *http.Client) error) error
	// AddDrainedCallback registers cb to run once Drain has let every
	// in-flight stream complete and no new ones will be accepted.
	AddDrainedCallback(cb func())
	// Drain begins graceful shutdown: no new streams are accepted, and
	// cb from AddDrainedCallback fires once in-flight ones finish.
	Drain()
}

// basePool implements the accounting shared by the HTTP/1 and HTTP/2
// pools: in-flight counting and the drained-callback firing rule.
type basePool struct {
	mu        sync.Mutex
	draining  bool
	inFlight  int
	callbacks []func()
}

func (p *basePool) acquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining {
		return false
	}
	p.inFlight++
	return true
}

func (p *basePool) release() {
	p.mu.Lock()
	drained := false
	p.inFlight--
	if p.draining && p.inFlight == 0 {
		drained = true
	}
	p.mu.Unlock()
	if drained {
		p.fireDrained()
	}
}

func (p *basePool) AddDrainedCallback(cb func()) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}

func (p *basePool) Drain() {
	p.mu.Lock()
	p.draining = true
	empty := p.inFlight == 0
	p.mu.Unlock()
	if empty {
		p.fireDrained()
	}
}

func (p *basePool) fireDrained() {
	p.mu.Lock()
	cbs := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

// HTTP1Pool serves HTTP/1.1 requests to one host over a dedicated
// *http.Transport, reused across streams for keep-alive connection
// reuse — the Go analogue of Http1::ConnPoolImplProd.
type HTTP1Pool struct {
	basePool
	client *http.Client
}

func NewHTTP1Pool(host *upstream.Host) *HTTP1Pool {
	var dialer net.Dialer
	return &HTTP1Pool{client: &http.Client{
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 8,
			TLSClientConfig:     host.Cluster.UpstreamTLS,
			// Pinned to the host this pool was allocated for — a
			// request's URL never picks the dial target, the
			// load-balancer's host selection does.
			DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
				return dialer.DialContext(ctx, network, host.Address())
			},
		},
	}}
}

func (p *HTTP1Pool) NewStream(ctx context.Context, fn func(ctx context.Context, client *http.Client) error) error {
	if !p.acquire() {
		return errPoolDraining
	}
	defer p.release()
	return fn(ctx, p.client)
}

// HTTP2Pool serves requests to one host multiplexed over a single HTTP/2
// connection via golang.org/x/net/http2 — the Go analogue of
// Http2::ProdConnPoolImpl.
type HTTP2Pool struct {
	basePool
	client *http.Client
}

func NewHTTP2Pool(host *upstream.Host) *HTTP2Pool {
	var dialer net.Dialer
	return &HTTP2Pool{client: &http.Client{
		Transport: &http2.Transport{
			AllowHTTP:       host.Cluster.UpstreamTLS == nil,
			TLSClientConfig: host.Cluster.UpstreamTLS,
			// http2.Transport dials through DialTLSContext even for
			// cleartext h2c (AllowHTTP); pin it to the pool's host the
			// same way HTTP1Pool pins its DialContext.
			DialTLSContext: func(ctx context.Context, network, _ string, cfg *tls.Config) (net.Conn, error) {
				conn, err := dialer.DialContext(ctx, network, host.Address())
				if err != nil || cfg == nil {
					return conn, err
				}
				return tls.Client(conn, cfg), nil
			},
		},
	}}
}

func (p *HTTP2Pool) NewStream(ctx context.Context, fn func(ctx context.Context, client *http.Client) error) error {
	if !p.acquire() {
		return errPoolDraining
	}
	defer p.release()
	return fn(ctx, p.client)
}

// Allocate picks HTTP/2 for host iff the cluster's feature bits include
// it AND the upstream.use_http2 runtime roll enables it for this host;
// HTTP/1 otherwise.
func Allocate(host *upstream.Host, rt *runtime.Snapshot) Pool {
	if host.Cluster.HasFeature(upstream.FeatureHTTP2) && rt.FeatureEnabledForID("upstream.use_http2", 100, host.Address()) {
		return NewHTTP2Pool(host)
	}
	return NewHTTP1Pool(host)
}
