package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/questengine/internal/config"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleRetention   = 10 * time.Minute
)

// RequestLimiter counts malformed requests per IP. Reaching the threshold
// locks the IP out; each repeat lockout doubles, up to the configured max.
type RequestLimiter struct {
	mu         sync.Mutex
	offenders  map[string]*offender
	maxInvalid int
	lockout    time.Duration
	maxLockout time.Duration
	now        func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type offender struct {
	invalid     int
	lockouts    int // completed lockouts, drives the backoff
	lockedUntil time.Time
	lastSeen    time.Time
}

// NewRequestLimiter creates a limiter and starts its cleanup goroutine.
func NewRequestLimiter(cfg config.RateLimitConfig) *RequestLimiter {
	rl := newRequestLimiter(cfg, time.Now)
	go rl.cleanupLoop(limiterCleanupInterval)
	return rl
}

func newRequestLimiter(cfg config.RateLimitConfig, now func() time.Time) *RequestLimiter {
	rl := &RequestLimiter{
		offenders:  make(map[string]*offender),
		maxInvalid: cfg.MaxInvalid,
		lockout:    time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout: time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		now:        now,
		stop:       make(chan struct{}),
	}
	if rl.maxInvalid <= 0 {
		rl.maxInvalid = 10
	}
	if rl.lockout <= 0 {
		rl.lockout = 30 * time.Second
	}
	if rl.maxLockout < rl.lockout {
		rl.maxLockout = rl.lockout
	}
	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RequestLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// IsLocked reports whether ip is locked out and for how much longer.
func (rl *RequestLimiter) IsLocked(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	o, ok := rl.offenders[ip]
	if !ok {
		return false, 0
	}
	if remaining := o.lockedUntil.Sub(rl.now()); remaining > 0 {
		return true, remaining
	}
	return false, 0
}

// RecordInvalid counts one malformed request. It returns true with the
// lockout length when this request (or an earlier one) locked ip out.
func (rl *RequestLimiter) RecordInvalid(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	o, ok := rl.offenders[ip]
	if !ok {
		o = &offender{}
		rl.offenders[ip] = o
	}
	o.lastSeen = now

	if remaining := o.lockedUntil.Sub(now); remaining > 0 {
		return true, remaining
	}

	o.invalid++
	if o.invalid < rl.maxInvalid {
		return false, 0
	}

	d := backoff(rl.lockout, rl.maxLockout, o.lockouts)
	o.lockouts++
	o.invalid = 0
	o.lockedUntil = now.Add(d)
	return true, d
}

// backoff returns base doubled n times, capped at max
func backoff(base, max time.Duration, n int) time.Duration {
	d := base
	for i := 0; i < n; i++ {
		if d >= max/2 {
			return max
		}
		d *= 2
	}
	if d > max {
		return max
	}
	return d
}

// Forget clears everything recorded for an IP.
func (rl *RequestLimiter) Forget(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.offenders, ip)
}

// InvalidCount returns the malformed requests counted toward the next lockout.
func (rl *RequestLimiter) InvalidCount(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if o, ok := rl.offenders[ip]; ok {
		return o.invalid
	}
	return 0
}

func (rl *RequestLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops IPs that are unlocked and have been quiet for a while
func (rl *RequestLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-limiterIdleRetention)
	for ip, o := range rl.offenders {
		if !o.lockedUntil.After(now) && o.lastSeen.Before(cutoff) {
			delete(rl.offenders, ip)
		}
	}
}
