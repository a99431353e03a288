package throttle

import (
	"context"
	"math"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Guard decides whether sign-in attempts are permitted. It keeps two
// independent failure counters, one keyed by account and one by network
// origin, and never performs I/O: every operation is a bounded in-memory
// state transition safe for arbitrary concurrent use.
type Guard struct {
	policy   Policy
	accounts cache
	origins  cache
	nowFn    func() time.Time
}

// NewGuard constructs a Guard with the given policy.
func NewGuard(policy Policy) *Guard {
	return &Guard{policy: policy.normalized(), nowFn: time.Now}
}

// newGuardAt constructs a Guard with an injected clock for tests.
func newGuardAt(policy Policy, nowFn func() time.Time) *Guard {
	g := NewGuard(policy)
	if nowFn != nil {
		g.nowFn = nowFn
	}
	return g
}

// Policy returns the active lockout policy.
func (g *Guard) Policy() Policy { return g.policy }

// accountKey normalizes an account identifier; failures for the same account
// are counted case-insensitively.
func accountKey(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// RecordFailure registers a failed sign-in for each non-empty key.
func (g *Guard) RecordFailure(account, origin string) {
	now := g.nowFn()
	if key := accountKey(account); key != "" {
		g.accounts.fail(key, now, g.policy)
	}
	if key := strings.TrimSpace(origin); key != "" {
		g.origins.fail(key, now, g.policy)
	}
}

// RecordSuccess clears the failure state for each non-empty key. It is a
// no-op for keys with no recorded failures.
func (g *Guard) RecordSuccess(account, origin string) {
	if key := accountKey(account); key != "" {
		g.accounts.forget(key)
	}
	if key := strings.TrimSpace(origin); key != "" {
		g.origins.forget(key)
	}
}

// IsBlocked reports whether either key holds an unexpired lock.
func (g *Guard) IsBlocked(account, origin string) bool {
	now := g.nowFn()
	if key := accountKey(account); key != "" && g.accounts.blocked(key, now) {
		return true
	}
	if key := strings.TrimSpace(origin); key != "" && g.origins.blocked(key, now) {
		return true
	}
	return false
}

// RemainingLockout returns the longer of the two keys' remaining lock time,
// or zero when neither key is locked.
func (g *Guard) RemainingLockout(account, origin string) time.Duration {
	now := g.nowFn()
	var remaining time.Duration
	if key := accountKey(account); key != "" {
		remaining = g.accounts.remainingLock(key, now)
	}
	if key := strings.TrimSpace(origin); key != "" {
		if d := g.origins.remainingLock(key, now); d > remaining {
			remaining = d
		}
	}
	return remaining
}

// RemainingLockoutMinutes returns RemainingLockout rounded up to whole
// minutes, so a locked key never reports zero.
func (g *Guard) RemainingLockoutMinutes(account, origin string) int {
	remaining := g.RemainingLockout(account, origin)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

// RemainingAttempts returns how many failures the account has left before it
// locks. Accounts with no record, or whose reset window has passed, report
// the full allowance.
func (g *Guard) RemainingAttempts(account string) int {
	key := accountKey(account)
	if key == "" {
		return g.policy.MaxAttempts
	}
	return g.accounts.remainingAttempts(key, g.nowFn(), g.policy)
}

// Reset drops every failure record and lock from both counters, returning
// the number of records evicted. Used by the administrative reset endpoint
// to unblock all accounts and origins at once.
func (g *Guard) Reset() int {
	evicted := g.accounts.clear() + g.origins.clear()
	if evicted > 0 {
		log.Infof("login throttle: reset cleared %d records", evicted)
	}
	return evicted
}

// Cleanup evicts stale records from both counters. Safe to run concurrently
// with every other operation.
func (g *Guard) Cleanup(now time.Time) {
	g.accounts.sweep(now, g.policy)
	g.origins.sweep(now, g.policy)
}

// StartJanitor sweeps stale records on the given interval until ctx is
// cancelled.
func (g *Guard) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				g.Cleanup(now)
			}
		}
	}()
	log.Debugf("login throttle: janitor started, interval=%s", interval)
}
