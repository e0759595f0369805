package healthcheck

import "time"

// Type selects the active health-check variant.
type Type string

const (
	TypeHTTP Type = "http"
	TypeTCP  Type = "tcp"
)

// Config is one cluster's active health-check configuration, normalized
// from the `health_check {type, interval_ms, timeout_ms,
// unhealthy_threshold, healthy_threshold, path}` configuration object.
type Config struct {
	Type               Type
	Interval           time.Duration
	Timeout            time.Duration
	UnhealthyThreshold int
	HealthyThreshold   int

	// Path is the HTTP probe's request path; ignored for Tcp.
	Path string
	// ExpectedStatusMin/Max bound the accepted HTTP response code range;
	// defaults to [200, 399] when both are zero.
	ExpectedStatusMin int
	ExpectedStatusMax int

	// Send/Expect are the optional Tcp probe payload and expected reply
	// prefix; a pure-connect probe leaves both empty.
	Send   []byte
	Expect []byte

	// MaxProbesPerSecond paces probe dispatch across every host of this
	// cluster's Checker, so a cluster with thousands of hosts and a
	// short interval doesn't fire them all in the same instant. Zero
	// means unlimited.
	MaxProbesPerSecond float64
}
