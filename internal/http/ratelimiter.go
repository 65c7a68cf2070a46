package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ClientLimiter enforces a maximum number of events per client within a
// sliding time window.
type ClientLimiter struct {
	window time.Duration
	limit  int
	now    func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
}

// NewClientLimiter constructs a limiter allowing up to limit events per client per window.
func NewClientLimiter(window time.Duration, limit int, timeSource func() time.Time) *ClientLimiter {
	if timeSource == nil {
		timeSource = time.Now
	}
	return &ClientLimiter{
		window:  window,
		limit:   limit,
		now:     timeSource,
		clients: make(map[string][]time.Time),
	}
}

// Allow reports whether the client identified by key may proceed.
func (l *ClientLimiter) Allow(key string) bool {
	if l == nil || l.limit <= 0 || l.window <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	//1.- Forget idle clients so the map does not grow with every address seen.
	for client, events := range l.clients {
		if len(events) == 0 || !events[len(events)-1].After(cutoff) {
			delete(l.clients, client)
		}
	}
	events := l.clients[key]
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.limit {
		l.clients[key] = kept
		return false
	}
	l.clients[key] = append(kept, now)
	return true
}

// Tracked returns how many clients currently hold events in the window.
func (l *ClientLimiter) Tracked() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// clientKey identifies the caller by forwarded address or remote host.
func clientKey(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		if first, _, ok := strings.Cut(forwarded, ","); ok {
			return strings.TrimSpace(first)
		}
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
