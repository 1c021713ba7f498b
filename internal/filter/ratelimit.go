package filter

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig defines one rate limit: Max requests per Window.
type RateLimitConfig struct {
	Max    int
	Window time.Duration

	// KeyHeader names a header whose value identifies the caller, such as
	// an API key. Callers without it are keyed by client IP.
	KeyHeader string

	// Global counts every request against a single window.
	Global bool
}

// slidingWindow tracks request timestamps for one key, oldest first.
type slidingWindow struct {
	timestamps []time.Time
}

// RateLimiter enforces a sliding window limit per caller key. Keys whose
// window has emptied are dropped, at most one Window after they expire.
type RateLimiter struct {
	config    RateLimitConfig
	mu        sync.Mutex
	windows   map[string]*slidingWindow
	nextSweep time.Time
}

// RateLimit returns a filter that rejects with TooManyRequests once a
// caller has made Max requests within Window. It extracts nothing.
func RateLimit(config RateLimitConfig) *RateLimiter {
	if config.Max <= 0 {
		panic("filter.RateLimit: Max must be positive")
	}
	if config.Window <= 0 {
		panic("filter.RateLimit: Window must be positive")
	}
	return &RateLimiter{
		config:  config,
		windows: make(map[string]*slidingWindow),
	}
}

func (l *RateLimiter) Shape() Shape { return Unit }

func (l *RateLimiter) Extract(rt *Route) (Tuple, *Rejection) {
	key := l.key(rt)
	if !l.allow(key, time.Now()) {
		return nil, TooManyRequests(key, fmt.Sprintf("max %d per %s", l.config.Max, l.config.Window))
	}
	return Tuple{}, nil
}

func (l *RateLimiter) key(rt *Route) string {
	if l.config.Global {
		return "_global"
	}
	if l.config.KeyHeader != "" {
		if v, ok := rt.Header(l.config.KeyHeader); ok && v != "" {
			return v
		}
	}
	return clientIP(rt.Request())
}

// allow records a request for key unless the window is already full.
func (l *RateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.config.Window)
	if !now.Before(l.nextSweep) {
		l.sweep(cutoff)
		l.nextSweep = now.Add(l.config.Window)
	}

	w, ok := l.windows[key]
	if !ok {
		w = &slidingWindow{}
		l.windows[key] = w
	}
	valid := 0
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			w.timestamps[valid] = ts
			valid++
		}
	}
	w.timestamps = w.timestamps[:valid]

	if len(w.timestamps) >= l.config.Max {
		return false
	}
	w.timestamps = append(w.timestamps, now)
	return true
}

// sweep drops every window whose newest request is older than cutoff.
func (l *RateLimiter) sweep(cutoff time.Time) {
	for key, w := range l.windows {
		if n := len(w.timestamps); n == 0 || !w.timestamps[n-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}

// Reset clears all windows.
func (l *RateLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string]*slidingWindow)
}
