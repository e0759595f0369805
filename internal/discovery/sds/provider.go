// Package sds implements the membership-delivery side of an Sds cluster:
// a Provider fetches the current member list from a remote discovery
// service, either by polling an HTTP/JSON endpoint or by calling over
// gRPC with a JSON wire codec, gated behind the same interface.
// Grounded on internal/discovery/http_provider.go for the
// polling style and on cluster_manager_impl.cc's SdsConfig for the
// refresh cadence.
package sds

// Member is one entry in a discovery response.
type Member struct {
	Address  string            `json:"address"`
	Zone     string            `json:"zone"`
	Metadata map[string]string `json:"metadata"`
}

// Response is the full membership snapshot a Provider returns — Sds
// clusters treat every response as a full replace, never a delta.
type Response struct {
	Members []Member `json:"hosts"`
}

// Provider fetches one membership snapshot from the backing discovery
// cluster. Implementations (HTTPProvider, GRPCProvider) are swappable
// behind this interface; SdsCluster only depends on Provider.
type Provider interface {
	Fetch() (*Response, error)
	Close() error
}
