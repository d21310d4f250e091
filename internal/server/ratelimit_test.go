package server

import (
	"testing"
	"time"

	"github.com/lawnchairsociety/questengine/internal/config"
)

type limiterClock struct{ t time.Time }

func (c *limiterClock) now() time.Time          { return c.t }
func (c *limiterClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(maxInvalid, lockout, maxLockout int) (*RequestLimiter, *limiterClock) {
	clock := &limiterClock{t: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)}
	rl := newRequestLimiter(config.RateLimitConfig{
		MaxInvalid:        maxInvalid,
		LockoutSeconds:    lockout,
		MaxLockoutSeconds: maxLockout,
	}, clock.now)
	return rl, clock
}

func TestRequestLimiter_LocksAtThreshold(t *testing.T) {
	rl, _ := newTestLimiter(3, 30, 300)

	for i := 1; i < 3; i++ {
		if locked, _ := rl.RecordInvalid("1.2.3.4"); locked {
			t.Fatalf("Locked after %d invalid requests, want 3", i)
		}
	}
	locked, d := rl.RecordInvalid("1.2.3.4")
	if !locked || d != 30*time.Second {
		t.Fatalf("RecordInvalid = (%v, %v), want (true, 30s)", locked, d)
	}

	if locked, _ := rl.IsLocked("1.2.3.4"); !locked {
		t.Error("Expected IP to be locked")
	}
	if locked, _ := rl.IsLocked("5.6.7.8"); locked {
		t.Error("Other IPs should not be locked")
	}
	if n := rl.InvalidCount("1.2.3.4"); n != 0 {
		t.Errorf("InvalidCount after lockout = %d, want 0", n)
	}
}

func TestRequestLimiter_LockoutExpires(t *testing.T) {
	rl, clock := newTestLimiter(1, 30, 300)

	rl.RecordInvalid("1.2.3.4")
	clock.advance(10 * time.Second)

	locked, remaining := rl.IsLocked("1.2.3.4")
	if !locked || remaining != 20*time.Second {
		t.Fatalf("IsLocked = (%v, %v), want (true, 20s)", locked, remaining)
	}

	// Requests during a lockout report it without extending it
	if locked, d := rl.RecordInvalid("1.2.3.4"); !locked || d != 20*time.Second {
		t.Errorf("RecordInvalid while locked = (%v, %v)", locked, d)
	}

	clock.advance(20 * time.Second)
	if locked, _ := rl.IsLocked("1.2.3.4"); locked {
		t.Error("Lockout should have expired")
	}
}

func TestRequestLimiter_ExponentialBackoff(t *testing.T) {
	rl, clock := newTestLimiter(1, 30, 100)

	want := []time.Duration{30 * time.Second, 60 * time.Second, 100 * time.Second, 100 * time.Second}
	for i, w := range want {
		locked, d := rl.RecordInvalid("1.2.3.4")
		if !locked || d != w {
			t.Errorf("lockout %d = (%v, %v), want %v", i+1, locked, d, w)
		}
		clock.advance(d)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		base, max time.Duration
		n         int
		want      time.Duration
	}{
		{time.Second, time.Minute, 0, time.Second},
		{time.Second, time.Minute, 3, 8 * time.Second},
		{time.Second, time.Minute, 10, time.Minute},
		{time.Minute, time.Minute, 1, time.Minute},
		{time.Duration(1 << 62), time.Duration(1<<63 - 1), 5, time.Duration(1<<63 - 1)},
	}
	for _, tt := range tests {
		if got := backoff(tt.base, tt.max, tt.n); got != tt.want {
			t.Errorf("backoff(%v, %v, %d) = %v, want %v", tt.base, tt.max, tt.n, got, tt.want)
		}
	}
}

func TestRequestLimiter_Defaults(t *testing.T) {
	rl, _ := newTestLimiter(0, 0, 0)

	for i := 1; i < 10; i++ {
		if locked, _ := rl.RecordInvalid("1.2.3.4"); locked {
			t.Fatalf("Locked after %d requests with default threshold", i)
		}
	}
	if locked, d := rl.RecordInvalid("1.2.3.4"); !locked || d != 30*time.Second {
		t.Errorf("Default lockout = (%v, %v), want (true, 30s)", locked, d)
	}
}

func TestRequestLimiter_Forget(t *testing.T) {
	rl, _ := newTestLimiter(1, 30, 300)

	rl.RecordInvalid("1.2.3.4")
	rl.Forget("1.2.3.4")

	if locked, _ := rl.IsLocked("1.2.3.4"); locked {
		t.Error("Forget should clear the lockout")
	}
}

func TestRequestLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(5, 30, 300)

	rl.RecordInvalid("quiet")
	clock.advance(limiterIdleRetention + time.Second)
	rl.RecordInvalid("recent")
	rl.cleanup()

	if n := rl.InvalidCount("quiet"); n != 0 {
		t.Errorf("quiet IP should be dropped, count %d", n)
	}
	if n := rl.InvalidCount("recent"); n != 1 {
		t.Errorf("recent IP should be kept, count %d", n)
	}
}

func TestRequestLimiter_StopTwice(t *testing.T) {
	rl := NewRequestLimiter(config.RateLimitConfig{})
	rl.Stop()
	rl.Stop()
}
