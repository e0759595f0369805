// Package dnsresolver implements the DNS resolution collaborator: a
// resolve(name, callback) contract where callback receives the address
// list or a failure. It prefers a direct miekg/dns query against a
// configured resolver address, and falls back to the stdlib resolver
// when none is configured — keeping zero-config bootstraps working the
// way this repo's own config loader does for its other settings.
package dnsresolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Callback receives the resolved addresses, or an error on failure.
type Callback func(addrs []string, err error)

// Resolver is the DnsResolver contract.
type Resolver interface {
	// Resolve looks up name and invokes cb with the result. Resolve may
	// call cb synchronously or from another goroutine; callers must not
	// assume either.
	Resolve(ctx context.Context, name string, cb Callback)
}

// Config configures the resolver's upstream DNS server.
type Config struct {
	// Server, if set, is a "host:port" DNS server queried directly via
	// miekg/dns. If empty, the stdlib resolver (net.DefaultResolver) is
	// used instead.
	Server  string
	Timeout time.Duration
}

type resolver struct {
	cfg    Config
	client *dns.Client
}

// New creates a Resolver from cfg.
func New(cfg Config) Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &resolver{cfg: cfg, client: &dns.Client{Timeout: cfg.Timeout}}
}

func (r *resolver) Resolve(ctx context.Context, name string, cb Callback) {
	if r.cfg.Server == "" {
		r.resolveStdlib(ctx, name, cb)
		return
	}
	r.resolveMiekg(ctx, name, cb)
}

func (r *resolver) resolveStdlib(ctx context.Context, name string, cb Callback) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, name)
	if err != nil {
		cb(nil, fmt.Errorf("dns: resolve %q: %w", name, err))
		return
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.IP.String())
	}
	cb(addrs, nil)
}

func (r *resolver) resolveMiekg(_ context.Context, name string, cb Callback) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)

	in, _, err := r.client.Exchange(msg, r.cfg.Server)
	if err != nil {
		cb(nil, fmt.Errorf("dns: query %q via %s: %w", name, r.cfg.Server, err))
		return
	}
	if in.Rcode != dns.RcodeSuccess {
		cb(nil, fmt.Errorf("dns: query %q via %s: rcode %s", name, r.cfg.Server, dns.RcodeToString[in.Rcode]))
		return
	}

	var addrs []string
	for _, rr := range in.Answer {
		if a, ok := rr.(*dns.A); ok {
			addrs = append(addrs, a.A.String())
		}
	}
	if len(addrs) == 0 {
		cb(nil, fmt.Errorf("dns: no A records for %q", name))
		return
	}
	cb(addrs, nil)
}
