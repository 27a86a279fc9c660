package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	limiter := NewRateLimiter(newClient(mr), 3, time.Minute, 5*time.Minute, "otp")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := limiter.Allow(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 2-i, d.Remaining)
		}
	}

	d, err := limiter.Allow(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("allow over limit: %v", err)
	}
	if d.Allowed {
		t.Fatalf("fourth request should be blocked")
	}
	if !mr.Exists("otp:ip:1.2.3.4:blocked") {
		t.Fatalf("expected block key")
	}

	// Other clients are unaffected.
	if d, _ := limiter.Allow(ctx, "ip:5.6.7.8"); !d.Allowed {
		t.Fatalf("other client should be allowed")
	}

	mr.FastForward(6 * time.Minute)
	if d, _ := limiter.Allow(ctx, "ip:1.2.3.4"); !d.Allowed {
		t.Fatalf("client should be unblocked after block and window expire")
	}
}
