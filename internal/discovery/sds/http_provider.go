package sds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EndpointResolver returns the address of a currently-healthy instance of
// the backing discovery cluster — SDS clusters don't talk to a fixed
// address; they ask whatever DNS/static cluster backs them, the cluster
// named in their configuration's backing-cluster reference.
type EndpointResolver func() (string, error)

// HTTPProvider polls the backing discovery cluster's HTTP/JSON endpoint
// on each Fetch call. Grounded on internal/discovery/http_provider.go's HTTPProvider.
type HTTPProvider struct {
	resolveEndpoint EndpointResolver
	path            string
	client          *http.Client
}

// NewHTTPProvider builds an HTTPProvider. path is appended to whatever
// address resolveEndpoint returns (e.g. "/v1/discovery:clusters").
func NewHTTPProvider(resolveEndpoint EndpointResolver, path string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		resolveEndpoint: resolveEndpoint,
		path:            path,
		client:          &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Fetch() (*Response, error) {
	addr, err := p.resolveEndpoint()
	if err != nil {
		return nil, fmt.Errorf("sds: resolve backing endpoint: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.client.Timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s%s", addr, p.path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("sds: build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sds: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sds: fetch %s: status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("sds: read response: %w", err)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("sds: decode response: %w", err)
	}
	return &out, nil
}

func (p *HTTPProvider) Close() error { return nil }
