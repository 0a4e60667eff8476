package ratelimiter

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// AttemptLimiter applies a token bucket per device id and periodically
// evicts idle entries. It throttles guesses at the verification exchange
// without slowing the legitimate first attempt.
type AttemptLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	byDevice map[string]*entry
	hits     uint64
	idleTTL  time.Duration
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a per-device limiter; returns nil if args are invalid. A
// nil limiter allows everything.
func New(rps float64, burst int, idleTTL time.Duration) *AttemptLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &AttemptLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		byDevice: make(map[string]*entry),
		idleTTL:  idleTTL,
	}
}

// Allow reports whether one attempt can be consumed for the device at now.
func (l *AttemptLimiter) Allow(deviceID string, now time.Time) bool {
	if l == nil {
		return true
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byDevice[deviceID]
	if !ok {
		e = &entry{
			limiter:  rate.NewLimiter(l.limit, l.burst),
			lastSeen: now,
		}
		l.byDevice[deviceID] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for id, v := range l.byDevice {
			if v.lastSeen.Before(cutoff) {
				delete(l.byDevice, id)
			}
		}
	}

	return allowed
}
