package throttle

import (
	"sync"
	"time"
)

// record tracks consecutive failures for one key. All fields are guarded by
// mu. A record marked gone has been removed from its cache; writers that
// observe gone must re-fetch, so no failure is ever counted against a record
// that eviction already dropped.
type record struct {
	mu          sync.Mutex
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
	gone        bool
}

// cache is a keyed, time-decaying failure counter. Entries are independent:
// operations on one key never contend with operations on another.
type cache struct {
	entries sync.Map // string -> *record
}

// fail registers one failed attempt for key and returns the updated record
// state. The read-modify-write is atomic per key.
func (c *cache) fail(key string, now time.Time, p Policy) {
	for {
		v, _ := c.entries.LoadOrStore(key, &record{})
		r := v.(*record)
		r.mu.Lock()
		if r.gone {
			r.mu.Unlock()
			continue
		}
		lockExpired := !r.lockedUntil.IsZero() && !now.Before(r.lockedUntil)
		if lockExpired || r.lastAttempt.IsZero() || now.Sub(r.lastAttempt) > p.ResetWindow {
			r.attempts = 1
			r.lockedUntil = time.Time{}
		} else {
			r.attempts++
		}
		r.lastAttempt = now
		if r.attempts >= p.MaxAttempts {
			r.lockedUntil = now.Add(p.LockoutDuration)
		}
		r.mu.Unlock()
		return
	}
}

// forget removes the record for key, if any.
func (c *cache) forget(key string) {
	v, ok := c.entries.Load(key)
	if !ok {
		return
	}
	r := v.(*record)
	r.mu.Lock()
	r.gone = true
	r.mu.Unlock()
	c.entries.Delete(key)
}

// blocked reports whether key holds an unexpired lock. A lock observed after
// expiry evicts the stale record.
func (c *cache) blocked(key string, now time.Time) bool {
	v, ok := c.entries.Load(key)
	if !ok {
		return false
	}
	r := v.(*record)
	r.mu.Lock()
	if r.gone || r.lockedUntil.IsZero() {
		r.mu.Unlock()
		return false
	}
	if !now.Before(r.lockedUntil) {
		r.gone = true
		r.mu.Unlock()
		c.entries.Delete(key)
		return false
	}
	r.mu.Unlock()
	return true
}

// remainingLock returns how long the key stays locked, clamped to >= 0.
func (c *cache) remainingLock(key string, now time.Time) time.Duration {
	v, ok := c.entries.Load(key)
	if !ok {
		return 0
	}
	r := v.(*record)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone || r.lockedUntil.IsZero() {
		return 0
	}
	if remaining := r.lockedUntil.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// remainingAttempts returns how many failures are left before key locks.
// A record whose reset window has passed is evicted as a side effect.
func (c *cache) remainingAttempts(key string, now time.Time, p Policy) int {
	v, ok := c.entries.Load(key)
	if !ok {
		return p.MaxAttempts
	}
	r := v.(*record)
	r.mu.Lock()
	if r.gone {
		r.mu.Unlock()
		return p.MaxAttempts
	}
	if now.Sub(r.lastAttempt) > p.ResetWindow {
		r.gone = true
		r.mu.Unlock()
		c.entries.Delete(key)
		return p.MaxAttempts
	}
	remaining := p.MaxAttempts - r.attempts
	r.mu.Unlock()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// clear removes every record, returning the number evicted.
func (c *cache) clear() int {
	evicted := 0
	c.entries.Range(func(key, v any) bool {
		r := v.(*record)
		r.mu.Lock()
		if !r.gone {
			r.gone = true
			evicted++
		}
		r.mu.Unlock()
		c.entries.Delete(key)
		return true
	})
	return evicted
}

// sweep evicts every record whose reset window has passed and whose lock, if
// any, has expired. Records touched by a concurrent fail are left alone.
func (c *cache) sweep(now time.Time, p Policy) {
	c.entries.Range(func(key, v any) bool {
		r := v.(*record)
		r.mu.Lock()
		stale := !r.gone &&
			now.Sub(r.lastAttempt) > p.ResetWindow &&
			(r.lockedUntil.IsZero() || now.After(r.lockedUntil))
		if stale {
			r.gone = true
		}
		r.mu.Unlock()
		if stale {
			c.entries.Delete(key)
		}
		return true
	})
}
