package handlers

import (
	"testing"
	"time"
)

func TestWindowLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newWindowLimiter(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("203.0.113.1") || !limiter.Allow("203.0.113.1") {
		t.Fatalf("expected first two events to be allowed")
	}
	if limiter.Allow("203.0.113.1") {
		t.Fatalf("expected third event to be rejected")
	}
	if !limiter.Allow("203.0.113.2") {
		t.Fatalf("expected other keys to be unaffected")
	}

	now = now.Add(time.Minute)
	if !limiter.Allow("203.0.113.1") {
		t.Fatalf("expected a new window to reset the count")
	}
	if _, ok := limiter.windows["203.0.113.2"]; ok {
		t.Fatalf("expected expired windows to be pruned")
	}
}

func TestWindowLimiterDisabled(t *testing.T) {
	if limiter := newWindowLimiter(0, time.Minute, nil); limiter != nil {
		t.Fatalf("expected nil limiter for zero limit")
	}
	var limiter *windowLimiter
	if !limiter.Allow("any") {
		t.Fatalf("nil limiter must allow")
	}
}
