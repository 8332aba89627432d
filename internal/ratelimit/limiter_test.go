package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_LocalWindow_EnforcesQuota(t *testing.T) {
	l := NewLimiter(nil)

	// 50 requests fill the window.
	for i := 0; i < 50; i++ {
		result, err := l.Check(context.Background(), "diagnose:10.0.0.1", 50, time.Hour)
		if err != nil {
			t.Fatalf("unexpected error on request %d: %v", i+1, err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	// The 51st is rejected.
	result, _ := l.Check(context.Background(), "diagnose:10.0.0.1", 50, time.Hour)
	if result.Allowed {
		t.Error("51st request should be rejected")
	}
	if result.Remaining != 0 {
		t.Errorf("remaining = %d, want 0", result.Remaining)
	}
	if result.RetryAfter <= 0 {
		t.Error("expected positive RetryAfter on rejection")
	}
}

func TestLimiter_LocalWindow_KeysIndependent(t *testing.T) {
	l := NewLimiter(nil)

	for i := 0; i < 3; i++ {
		l.Check(context.Background(), "diagnose:10.0.0.1", 3, time.Hour)
	}
	if result, _ := l.Check(context.Background(), "diagnose:10.0.0.1", 3, time.Hour); result.Allowed {
		t.Error("exhausted client should be rejected")
	}

	// A different client address is unaffected.
	if result, _ := l.Check(context.Background(), "diagnose:10.0.0.2", 3, time.Hour); !result.Allowed {
		t.Error("fresh client should be allowed")
	}
	// Same address, different operation is an independent counter.
	if result, _ := l.Check(context.Background(), "stats:10.0.0.1", 3, time.Hour); !result.Allowed {
		t.Error("different operation should be allowed")
	}
}

func TestLimiter_LocalWindow_ResetsOnExpiry(t *testing.T) {
	l := NewLimiter(nil)

	for i := 0; i < 2; i++ {
		l.Check(context.Background(), "diagnose:10.0.0.1", 2, 20*time.Millisecond)
	}
	if result, _ := l.Check(context.Background(), "diagnose:10.0.0.1", 2, 20*time.Millisecond); result.Allowed {
		t.Fatal("over-quota request should be rejected")
	}

	time.Sleep(30 * time.Millisecond)

	// Fresh window: the first request succeeds again.
	if result, _ := l.Check(context.Background(), "diagnose:10.0.0.1", 2, 20*time.Millisecond); !result.Allowed {
		t.Error("first request of a fresh window should be allowed")
	}
}

func TestLimiter_Remaining(t *testing.T) {
	l := NewLimiter(nil)

	result, _ := l.Check(context.Background(), "k", 10, time.Minute)
	if result.Remaining != 9 {
		t.Errorf("remaining after first request = %d, want 9", result.Remaining)
	}
}

func TestLimiter_LocalWindow_Concurrent(t *testing.T) {
	l := NewLimiter(nil)
	const workers = 20

	allowed := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		go func() {
			result, _ := l.Check(context.Background(), "k", 10, time.Minute)
			allowed <- result.Allowed
		}()
	}

	passed := 0
	for i := 0; i < workers; i++ {
		if <-allowed {
			passed++
		}
	}
	if passed != 10 {
		t.Errorf("expected exactly 10 of %d concurrent requests allowed, got %d", workers, passed)
	}
}
