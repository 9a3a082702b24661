package util

import (
	"context"
	"testing"
	"time"
)

func TestRefreshLimiterBurstThenThrottle(t *testing.T) {
	l := NewRefreshLimiter(1, 2)
	if !l.TryRefresh() || !l.TryRefresh() {
		t.Fatal("burst refreshes should start immediately")
	}
	if l.TryRefresh() {
		t.Fatal("refresh past the burst should be throttled")
	}
}

func TestRefreshLimiterWaitHonorsContext(t *testing.T) {
	l := NewRefreshLimiter(0.001, 1)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("burst token should satisfy the first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected the deadline to abort the wait")
	}
}
