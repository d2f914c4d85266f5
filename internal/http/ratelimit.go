package http

import (
	"net"
	"sync"
	"time"
)

// idleAfter is how long an untouched bucket is kept before it is dropped.
const idleAfter = 10 * time.Minute

// submitLimiter throttles form submissions per client with a token bucket.
// A nil limiter allows everything.
type submitLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perSecond float64
	burst     float64
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func newSubmitLimiter(perSecond float64) *submitLimiter {
	if perSecond <= 0 {
		return nil
	}
	burst := perSecond * 2
	if burst < 5 {
		burst = 5
	}
	return &submitLimiter{
		buckets:   make(map[string]*bucket),
		perSecond: perSecond,
		burst:     burst,
	}
}

func (l *submitLimiter) Allow(key string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(now)

	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.burst - 1, seen: now}
		return true
	}

	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = min(l.burst, b.tokens+elapsed*l.perSecond)
		b.seen = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *submitLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < idleAfter {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.seen) > idleAfter {
			delete(l.buckets, key)
		}
	}
}

func clientIPAddress(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
