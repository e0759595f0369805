package healthcheck

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/mir00r/cluster-manager/internal/upstream"
)

// Probe performs a single health-check attempt against host, returning
// nil on success. Grounded on internal/service/health_checker.go's
// HealthChecker.Check, split
// out into a variant-specific interface so Http and Tcp share the
// surrounding state-machine loop.
type Probe interface {
	Probe(ctx context.Context, host *upstream.Host) error
}

// HTTPProbe sends a GET to host.Address()+Path and checks the response
// code falls in [ExpectedStatusMin, ExpectedStatusMax].
type HTTPProbe struct {
	Client *http.Client
	Cfg    Config
}

func NewHTTPProbe(cfg Config) *HTTPProbe {
	return &HTTPProbe{
		Client: &http.Client{Timeout: cfg.Timeout},
		Cfg:    normalizeHTTPRange(cfg),
	}
}

func normalizeHTTPRange(cfg Config) Config {
	if cfg.ExpectedStatusMin == 0 && cfg.ExpectedStatusMax == 0 {
		cfg.ExpectedStatusMin, cfg.ExpectedStatusMax = 200, 399
	}
	return cfg
}

func (p *HTTPProbe) Probe(ctx context.Context, host *upstream.Host) error {
	url := fmt.Sprintf("http://%s%s", host.Address(), p.Cfg.Path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check: build request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("health check: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < p.Cfg.ExpectedStatusMin || resp.StatusCode > p.Cfg.ExpectedStatusMax {
		return fmt.Errorf("health check: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// TCPProbe connects to host.Address(), optionally sending Cfg.Send and
// expecting Cfg.Expect as a prefix of the reply.
type TCPProbe struct {
	Cfg Config
}

func NewTCPProbe(cfg Config) *TCPProbe { return &TCPProbe{Cfg: cfg} }

func (p *TCPProbe) Probe(ctx context.Context, host *upstream.Host) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", host.Address())
	if err != nil {
		return fmt.Errorf("health check: tcp connect failed: %w", err)
	}
	defer conn.Close()

	if len(p.Cfg.Send) == 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Write(p.Cfg.Send); err != nil {
		return fmt.Errorf("health check: tcp write failed: %w", err)
	}
	if len(p.Cfg.Expect) == 0 {
		return nil
	}

	buf := make([]byte, len(p.Cfg.Expect))
	if _, err := readFull(conn, buf); err != nil {
		return fmt.Errorf("health check: tcp read failed: %w", err)
	}
	if !bytes.Equal(buf, p.Cfg.Expect) {
		return fmt.Errorf("health check: tcp reply mismatch")
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
