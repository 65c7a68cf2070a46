package httpapi

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientLimiter(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewClientLimiter(time.Minute, 2, func() time.Time { return now })

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("expected first two calls to be allowed")
	}
	if limiter.Allow("a") {
		t.Fatal("expected third call to be denied")
	}
	if !limiter.Allow("b") {
		t.Fatal("expected a different client to have its own window")
	}

	now = now.Add(30 * time.Second)
	if limiter.Allow("a") {
		t.Fatal("expected call within window to still be denied")
	}

	now = now.Add(31 * time.Second)
	if !limiter.Allow("a") {
		t.Fatal("expected limiter to permit call after window passes")
	}
	if limiter.Tracked() != 1 {
		t.Fatalf("expected idle client to be forgotten, tracking %d", limiter.Tracked())
	}
}

func TestClientLimiterDisabled(t *testing.T) {
	if !NewClientLimiter(0, 0, nil).Allow("a") {
		t.Fatal("limiter with zero configuration should allow")
	}
}

func TestClientKey(t *testing.T) {
	req := httptest.NewRequest("GET", "/runs", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if got := clientKey(req); got != "10.0.0.7" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientKey(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded address, got %q", got)
	}
}
