package worker

import "github.com/mir00r/cluster-manager/internal/upstream"

// updateTask carries one cluster's membership update from the primary
// to a worker. Payload mirrors postThreadLocalClusterUpdate: the full
// host vector plus the added/removed delta, applied atomically by the
// worker.
type updateTask struct {
	cluster string
	full    []*upstream.Host
	added   []*upstream.Host
	removed []*upstream.Host
}
