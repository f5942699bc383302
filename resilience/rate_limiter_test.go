package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRateLimiter_AllowsBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 1, Burst: 3})
	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Errorf("call %d should be allowed within burst", i)
		}
	}
	if rl.Allow() {
		t.Error("call beyond burst should be rejected")
	}
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "free"})
	for i := 0; i < 100; i++ {
		if !rl.Allow() {
			t.Fatal("unlimited limiter rejected a call")
		}
	}
	if rl.Rate() != 0 {
		t.Errorf("expected rate 0 for unlimited, got %v", rl.Rate())
	}
}

func TestRateLimiter_WaitPaces(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 50, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Two waits of ~20ms each after the initial token.
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected pacing, finished in %v", elapsed)
	}
}

func TestRateLimiter_WaitRespectsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Name: "test", Rate: 0.1, Burst: 1})
	rl.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); err == nil {
		t.Error("expected error when waiting past the deadline")
	}
}

func TestRateLimiter_Execute(t *testing.T) {
	limited := 0
	rl := NewRateLimiter(RateLimiterConfig{
		Name: "test", Rate: 1, Burst: 1,
		OnLimit: func(string) { limited++ },
	})

	calls := 0
	fn := func() error { calls++; return nil }
	if err := rl.Execute(fn); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	if err := rl.Execute(fn); !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
	if calls != 1 || limited != 1 {
		t.Errorf("expected 1 call and 1 limit event, got %d and %d", calls, limited)
	}
}

func TestRateLimiter_RateAndBurst(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 4})
	if rl.Rate() != 4 {
		t.Errorf("expected rate 4, got %v", rl.Rate())
	}
	if rl.Burst() != 4 {
		t.Errorf("expected default burst 4, got %d", rl.Burst())
	}
}
