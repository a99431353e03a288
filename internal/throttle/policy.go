// Package throttle tracks failed sign-in attempts per account and per network
// origin and locks a key out after repeated failures. Dual keying covers both
// credential stuffing against one account from many origins and password
// spraying across many accounts from one origin; a lock on either key denies.
package throttle

import "time"

// Policy defines the lockout thresholds for a Guard.
type Policy struct {
	// MaxAttempts is the number of consecutive failures that triggers a lock.
	MaxAttempts int
	// LockoutDuration is how long a locked key stays blocked.
	LockoutDuration time.Duration
	// ResetWindow is the idle period after which the failure count resets.
	ResetWindow time.Duration
}

// DefaultPolicy returns the standard lockout policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
		ResetWindow:     30 * time.Minute,
	}
}

// normalized returns the policy with non-positive fields replaced by defaults.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = def.LockoutDuration
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = def.ResetWindow
	}
	return p
}
