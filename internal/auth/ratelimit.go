// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskForge Contributors

package auth

import (
	"time"
)

// Lockout defaults.
const (
	// LockoutThreshold is the number of consecutive failures that locks an account.
	LockoutThreshold = 7

	// LockoutDuration is how long a locked account stays locked.
	LockoutDuration = 15 * time.Minute
)

// LockoutPolicy configures login throttling.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// DefaultLockoutPolicy locks after LockoutThreshold failures for LockoutDuration.
var DefaultLockoutPolicy = LockoutPolicy{
	Threshold: LockoutThreshold,
	Duration:  LockoutDuration,
}

// IsLockedOut returns true if the lockout time is after now.
func IsLockedOut(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && lockedUntil.After(now)
}

// LockoutTime returns the lockout timestamp for the given failure count.
// Returns nil if failures is below the threshold.
func (p LockoutPolicy) LockoutTime(failures int, now time.Time) *time.Time {
	if p.Threshold <= 0 || failures < p.Threshold {
		return nil
	}
	until := now.Add(p.Duration)
	return &until
}
