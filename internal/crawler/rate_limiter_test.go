package crawler

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterEnforcesDelay(t *testing.T) {
	rl := NewRateLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx, "https://example.com/page"); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	// First request is immediate, the next two wait 50ms each.
	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected at least 100ms across 3 requests, got %v", elapsed)
	}
}

func TestRateLimiterPerHost(t *testing.T) {
	rl := NewRateLimiter(time.Second)
	ctx := context.Background()

	start := time.Now()
	if err := rl.Wait(ctx, "https://a.example/x"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if err := rl.Wait(ctx, "https://b.example/y"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// Different hosts never wait on each other.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected independent host limiters, waited %v", elapsed)
	}
}

func TestRateLimiterCancelledContext(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	ctx := context.Background()

	// Exhaust the burst for the host.
	if err := rl.Wait(ctx, "https://slow.example/"); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := rl.Wait(cancelled, "https://slow.example/"); err == nil {
		t.Error("Expected error waiting with cancelled context")
	}
}
