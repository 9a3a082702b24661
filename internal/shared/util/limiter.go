package util

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RefreshLimiter bounds how often debounced watcher batches may start a
// refresh pass. A save storm (branch switch, formatter sweep) collapses
// into at most the configured burst of immediate refreshes; later batches
// queue behind Wait at the steady per-second rate.
type RefreshLimiter struct {
	bucket *rate.Limiter
}

// NewRefreshLimiter allows perSec refresh passes per second with the given
// burst headroom.
func NewRefreshLimiter(perSec float64, burst int) *RefreshLimiter {
	return &RefreshLimiter{bucket: rate.NewLimiter(rate.Limit(perSec), burst)}
}

// TryRefresh reports whether a refresh may start now, consuming a token
// when it may.
func (l *RefreshLimiter) TryRefresh() bool {
	return l.bucket.AllowN(time.Now(), 1)
}

// Wait blocks until the next refresh may start or ctx is done.
func (l *RefreshLimiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}
