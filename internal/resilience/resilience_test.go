package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, err := Retry(context.Background(), DefaultRetryConfig(), func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if val != 42 || calls != 1 {
		t.Errorf("val=%d calls=%d, want 42/1", val, calls)
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	calls := 0
	val, err := Retry(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", MarkTransient(errors.New("503"), 503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if val != "ok" || calls != 3 {
		t.Errorf("val=%q calls=%d, want ok/3", val, calls)
	}
}

func TestRetry_NonTransientFailsFast(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}
	calls := 0
	_, err := Retry(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("not found")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent error)", calls)
	}
}

func TestRetry_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: 50 * time.Millisecond}
	calls := 0
	_, err := Retry(ctx, cfg, func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, MarkTransient(errors.New("flaky"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 after cancellation", calls)
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(MarkTransient(errors.New("x"), 502)) {
		t.Error("marked error should be transient")
	}
	if IsTransient(errors.New("validation failed")) {
		t.Error("plain error should not be transient")
	}
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
	if !IsTransient(errors.New("dial tcp: i/o timeout")) {
		t.Error("timeout message should be transient")
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !RetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{200, 400, 401, 404} {
		if RetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		b.Record(MarkTransient(errors.New("down"), 503))
	}

	if b.State() != BreakerOpen {
		t.Fatalf("state = %s, want open", b.State())
	}
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_NonTransientDoesNotTrip(t *testing.T) {
	b := NewBreaker(2, time.Minute)
	for i := 0; i < 5; i++ {
		_ = b.Allow()
		b.Record(errors.New("product not found"))
	}
	if b.State() != BreakerClosed {
		t.Errorf("state = %s, want closed (404s are answers, not outages)", b.State())
	}
}

func TestBreaker_HalfOpenProbeRecovers(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, 100*time.Millisecond)
	b.nowFunc = func() time.Time { return now }

	_ = b.Allow()
	b.Record(MarkTransient(errors.New("down"), 500))
	if b.State() != BreakerOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	// Past the reset timeout a probe is allowed.
	b.nowFunc = func() time.Time { return now.Add(200 * time.Millisecond) }
	if b.State() != BreakerHalfOpen {
		t.Fatalf("state = %s, want half-open", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("probe should be allowed: %v", err)
	}

	b.Record(nil)
	if b.State() != BreakerClosed {
		t.Errorf("state = %s, want closed after successful probe", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, 100*time.Millisecond)
	b.nowFunc = func() time.Time { return now }

	_ = b.Allow()
	b.Record(MarkTransient(errors.New("down"), 500))

	b.nowFunc = func() time.Time { return now.Add(150 * time.Millisecond) }
	if err := b.Allow(); err != nil {
		t.Fatalf("probe should be allowed: %v", err)
	}
	b.Record(MarkTransient(errors.New("still down"), 500))

	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("expected reopened breaker, got %v", err)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := NewBreaker(1, time.Hour)
	_ = b.Allow()
	b.Record(MarkTransient(errors.New("down"), 500))

	b.Reset()
	if b.State() != BreakerClosed {
		t.Errorf("state = %s, want closed after reset", b.State())
	}
	if err := b.Allow(); err != nil {
		t.Errorf("allow after reset: %v", err)
	}
}
