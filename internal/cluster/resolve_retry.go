package cluster

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/mir00r/cluster-manager/internal/dnsresolver"
	lberrors "github.com/mir00r/cluster-manager/internal/errors"
)

// resolveRetrying adapts dnsresolver's callback style into a synchronous
// call and retries transient failures with exponential backoff, capped at
// three attempts — DNS refreshes run on a timer already, so a refresh
// that exhausts its retries simply tries again next tick rather than
// blocking the loop indefinitely.
func resolveRetrying(ctx context.Context, r dnsresolver.Resolver, name string) ([]string, error) {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)

	var addrs []string
	op := func() error {
		done := make(chan struct{})
		var opErr error
		r.Resolve(ctx, name, func(a []string, err error) {
			addrs, opErr = a, err
			close(done)
		})
		<-done
		if opErr != nil {
			return lberrors.WrapDNSTransient(name, opErr)
		}
		return nil
	}

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return addrs, nil
}
