package cluster

import "github.com/mir00r/cluster-manager/internal/sslcontext"

// HostConfig describes one configured host entry. For Static clusters
// Address is a literal "host:port" and Port is ignored; for
// StrictDns/LogicalDns, Address is a bare DNS name to resolve and Port is
// the port every address it resolves to is dialed on, since a resolved
// A record never carries one itself.
type HostConfig struct {
	Address  string
	Port     int
	Zone     string
	Metadata map[string]string
}

// Config is the normalized, already-parsed configuration for one
// cluster, regardless of type — the Go-side analogue of the "cluster"
// JSON object cluster_manager_impl.cc's loadCluster reads field-by-field.
type Config struct {
	Name             string
	Type             Type
	LBType           string // round_robin | least_request | random
	Hosts            []HostConfig
	Features         []string // "http2", "tls"
	DNSRefreshRateMs int      // StrictDns/LogicalDns refresh interval

	// TLS configures how hosts in this cluster are dialed; only
	// consulted when Features includes "tls".
	TLS sslcontext.Config

	// Sds fields, only meaningful when Type == TypeSds.
	SdsBackingCluster string // name of the already-registered cluster used to reach the discovery service
	SdsTransport      string // "http" (default) or "grpc"
	SdsPath           string // HTTP transport: path appended to the backing endpoint
	SdsMethod         string // gRPC transport: full method name to invoke
	SdsTimeoutMs      int
	SdsRefreshRateMs  int
}
