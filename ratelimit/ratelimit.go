// Package ratelimit implements spec §4.D's cross-cutting adapter rule:
// streaming-capable adapters retry a 429 with bounded exponential backoff
// (start 1s, double each try, at most 5 attempts in total, i.e. the first
// call plus 4 retries) before surfacing the error,
// plus an optional request-pacing token bucket. This generalizes the
// teacher's AdaptiveRateLimiter middleware while dropping its AIMD budget
// adjustment and Pulse cluster coordination, which existed to protect a
// shared multi-process token-per-minute budget — a billing/accounting
// concern spec.md's Non-goals place out of scope ("no billing / rate-limit
// accounting beyond token-usage passthrough").
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/cortexflow/llmkit/llmerr"
)

// DefaultMaxAttempts is the bound spec §4.D and §7 both name: at most 5
// attempts total (the first call plus 4 retries) before a 429 is surfaced.
const DefaultMaxAttempts = 5

// DefaultBaseDelay is the first retry's backoff delay; it doubles on every
// subsequent attempt.
const DefaultBaseDelay = time.Second

// Policy configures Retry's bounded exponential backoff.
type Policy struct {
	// MaxAttempts caps the total number of calls to fn, including the first.
	// Zero selects DefaultMaxAttempts.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; it doubles on each
	// subsequent attempt. Zero selects DefaultBaseDelay.
	BaseDelay time.Duration
}

func (p Policy) resolve() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	return p
}

// Retry calls fn, retrying with bounded exponential backoff only when fn
// returns an error llmerr.IsRetryable reports as a 429 ApiError. Any other
// error is returned immediately — per spec §7, "all other failures are
// one-shot." ctx cancellation aborts the wait between attempts.
func Retry(ctx context.Context, policy Policy, fn func() error) error {
	policy = policy.resolve()
	delay := policy.BaseDelay

	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !llmerr.IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

// Limiter paces outgoing requests against a tokens-per-minute budget using a
// token-bucket, the same primitive the teacher's AdaptiveRateLimiter builds
// on (golang.org/x/time/rate), without the AIMD adjustment loop: a caller
// that wants adaptive behavior composes Limiter.Wait with Retry's own
// backoff instead of a shared adjustable budget.
type Limiter struct {
	tokens *rate.Limiter
}

// NewLimiter constructs a Limiter enforcing tokensPerMinute, bursting up to
// one minute's worth of tokens.
func NewLimiter(tokensPerMinute float64) *Limiter {
	if tokensPerMinute <= 0 {
		return &Limiter{tokens: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{tokens: rate.NewLimiter(rate.Limit(tokensPerMinute/60.0), int(tokensPerMinute))}
}

// Wait blocks until n tokens are available or ctx is done.
func (l *Limiter) Wait(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	return l.tokens.WaitN(ctx, n)
}
