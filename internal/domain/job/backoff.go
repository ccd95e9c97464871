// Package job holds pure domain policies and coordination primitives for the
// composerd job queue.
package job

import (
	"errors"
	"time"
)

var (
	// ErrInvalidBackoffBase indicates a backoff policy cannot be constructed
	// with a non-positive base delay.
	ErrInvalidBackoffBase = errors.New("backoff base must be positive")
	// ErrInvalidBackoffCap indicates the cap is smaller than the base delay.
	ErrInvalidBackoffCap = errors.New("backoff cap must be >= base")
)

// BackoffPolicy maps an attempt count to the delay a failing worker imposes
// on itself before claiming again. Growth is linear with a hard ceiling:
// min(cap, max(1, attempts) * base). Both knobs are tunable; nothing here is
// hardcoded arithmetic.
//
// The delay is local to the worker that failed. It is not stamped on the job
// row, so an idle worker elsewhere may re-claim the job sooner.
type BackoffPolicy struct {
	base    time.Duration
	ceiling time.Duration
}

// NewBackoffPolicy validates and constructs the policy.
func NewBackoffPolicy(base, ceiling time.Duration) (*BackoffPolicy, error) {
	if base <= 0 {
		return nil, ErrInvalidBackoffBase
	}
	if ceiling < base {
		return nil, ErrInvalidBackoffCap
	}
	return &BackoffPolicy{base: base, ceiling: ceiling}, nil
}

// Base returns the per-attempt delay increment.
func (p *BackoffPolicy) Base() time.Duration {
	return p.base
}

// Cap returns the maximum delay the policy will ever produce.
func (p *BackoffPolicy) Cap() time.Duration {
	return p.ceiling
}

// Delay returns the wait duration after the given number of attempts.
// Attempt counts below one are treated as one.
func (p *BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	// Comparing against ceiling/base first keeps the multiplication below
	// from overflowing for absurd attempt counts.
	if attempts > int(p.ceiling/p.base) {
		return p.ceiling
	}
	d := time.Duration(attempts) * p.base
	if d > p.ceiling {
		return p.ceiling
	}
	return d
}
