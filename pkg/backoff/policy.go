// Package backoff implements the delay policy for the rate-limited fetcher.
//
// The policy is pure: it takes and returns explicit delay State instead of
// mutating a variable inside a retry loop, so the ramp-up and ramp-down laws
// are independently testable. The fetcher owns one State per target and
// threads it through every decision.
package backoff

import (
	"math/rand"
	"time"
)

// Policy holds the backoff configuration. The zero value is not usable;
// construct with DefaultPolicy.
type Policy struct {
	// Base is the minimum delay and the starting point of the ramp.
	Base time.Duration

	// FailureCap is the hard upper bound for failure backoff.
	FailureCap time.Duration

	// PolitenessCap bounds the relaxed inter-request delay after successes.
	PolitenessCap time.Duration

	// Multiplier is the exponential escalation factor for transient failures.
	Multiplier float64

	// JitterFraction adds up to this fraction of the computed delay as
	// random jitter, to avoid synchronized retry storms.
	JitterFraction float64

	// RelaxFactor shrinks the delay toward Base after each success.
	RelaxFactor float64

	// MaxAttempts is the retry budget per request, including the first try.
	MaxAttempts int

	// jitter returns a value in [0, 1). Injectable for deterministic tests.
	jitter func() float64
}

// State is the current delay position in the ramp.
type State struct {
	// Delay is the wait to apply before the next attempt (or between
	// requests, after Relax).
	Delay time.Duration
}

// DefaultPolicy returns the standard pipeline backoff configuration.
func DefaultPolicy() Policy {
	return Policy{
		Base:           200 * time.Millisecond,
		FailureCap:     30 * time.Second,
		PolitenessCap:  1 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.10,
		RelaxFactor:    0.9,
		MaxAttempts:    5,
		jitter:         rand.Float64,
	}
}

// WithJitterSource returns a copy of the policy using fn as its randomness
// source. Intended for tests.
func (p Policy) WithJitterSource(fn func() float64) Policy {
	p.jitter = fn
	return p
}

// Initial returns the starting state: delay at the base minimum.
func (p Policy) Initial() State {
	return State{Delay: p.Base}
}

// NextTransient escalates the delay after a generic transient failure:
// clamp(previous*Multiplier, Base, FailureCap) plus proportional jitter,
// clamped again so the result never exceeds FailureCap.
func (p Policy) NextTransient(s State) State {
	next := time.Duration(float64(s.Delay) * p.Multiplier)
	next += time.Duration(float64(next) * p.JitterFraction * p.rand())
	return State{Delay: p.clampFailure(next)}
}

// NextRateLimited returns the delay after a rate-limit signal. A positive
// server-supplied hint overrides the exponential state outright; without a
// hint the delay escalates as a transient failure would.
func (p Policy) NextRateLimited(s State, hint time.Duration) State {
	if hint > 0 {
		return State{Delay: hint}
	}
	return p.NextTransient(s)
}

// Relax ramps the delay down after a success: max(Base, previous*RelaxFactor),
// never above PolitenessCap. The floor keeps a politeness delay between
// requests even under sustained healthy traffic.
func (p Policy) Relax(s State) State {
	next := time.Duration(float64(s.Delay) * p.RelaxFactor)
	if next < p.Base {
		next = p.Base
	}
	if next > p.PolitenessCap {
		next = p.PolitenessCap
	}
	return State{Delay: next}
}

// Exhausted reports whether the attempt budget is spent. Attempts are
// 1-based.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}

func (p Policy) clampFailure(d time.Duration) time.Duration {
	if d < p.Base {
		return p.Base
	}
	if d > p.FailureCap {
		return p.FailureCap
	}
	return d
}

func (p Policy) rand() float64 {
	if p.jitter == nil {
		return rand.Float64()
	}
	return p.jitter()
}
