package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hszk-dev/tubelytics/internal/infrastructure/metrics"
)

// DefaultFetchTimeout bounds a backend fetch shared by coalesced callers.
const DefaultFetchTimeout = 30 * time.Second

// doShared runs fn once per key for all concurrent callers. fn runs on a
// context detached from any single caller and bounded by timeout, so one
// caller going away does not fail the others. Each caller waits until the
// shared result is ready or its own ctx ends.
func doShared(
	ctx context.Context,
	g *singleflight.Group,
	group, key string,
	timeout time.Duration,
	fn func(ctx context.Context) (any, error),
) (any, error) {
	ch := g.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(fctx)
	})

	select {
	case r := <-ch:
		if r.Shared {
			metrics.SingleflightRequestsTotal.WithLabelValues(group, metrics.SingleflightShared).Inc()
		} else {
			metrics.SingleflightRequestsTotal.WithLabelValues(group, metrics.SingleflightInitiated).Inc()
		}
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
