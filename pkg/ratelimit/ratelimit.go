// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package ratelimit wraps golang.org/x/time/rate token buckets behind the two
// shapes the service needs: a single shared bucket for an upstream source, and
// a registry of per-key buckets (API keys, client IPs, feed tokens).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// SourceLimiter is a single token bucket shared by every adapter instance
// talking to one upstream source.
type SourceLimiter struct {
	limiter *rate.Limiter
	source  string
}

// NewSourceLimiter creates a bucket refilling at rps tokens per second with
// the given burst capacity.
func NewSourceLimiter(source string, rps float64, burst int) *SourceLimiter {
	return &SourceLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		source:  source,
	}
}

// Acquire blocks until a token is available or the timeout elapses. A timeout
// is reported as RateLimited, which adapters classify as transient.
func (s *SourceLimiter) Acquire(ctx context.Context, timeout time.Duration) error {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errs.NewRateLimited("timed out waiting for "+s.source+" rate limit token", time.Second, err)
	}
	return nil
}

// Decision is the outcome of a registry Allow call, carrying everything the
// HTTP layer needs for the X-RateLimit-* response headers.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	perHour  int
	lastSeen time.Time
}

// Registry holds one token bucket per key, sized per key. Buckets refill
// continuously at limit/hour. State is process-local; cross-process
// consistency is best-effort by design.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRegistry creates an empty bucket registry. The janitor drops buckets not
// seen for an hour to bound memory.
func NewRegistry() *Registry {
	r := &Registry{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	go r.janitor()
	return r
}

func (r *Registry) janitor() {
	for {
		time.Sleep(10 * time.Minute)
		r.mu.Lock()
		cutoff := r.now().Add(-time.Hour)
		for key, b := range r.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(r.buckets, key)
			}
		}
		r.mu.Unlock()
	}
}

// Allow consumes one token from the bucket for key, creating it sized to
// perHour tokens when absent. A resize (operator changed the key's limit)
// replaces the bucket.
func (r *Registry) Allow(key string, perHour int) Decision {
	if perHour <= 0 {
		perHour = 1
	}

	r.mu.Lock()
	b, ok := r.buckets[key]
	if !ok || b.perHour != perHour {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(perHour)/3600.0), perHour),
			perHour: perHour,
		}
		r.buckets[key] = b
	}
	b.lastSeen = r.now()
	r.mu.Unlock()

	now := r.now()
	remaining := int(b.limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}

	if !b.limiter.Allow() {
		res := b.limiter.Reserve()
		retryAfter := res.Delay()
		res.Cancel()
		if retryAfter > time.Hour {
			retryAfter = time.Hour
		}
		return Decision{
			Allowed:    false,
			Limit:      perHour,
			Remaining:  0,
			Reset:      now.Add(retryAfter),
			RetryAfter: retryAfter,
		}
	}

	if remaining > 0 {
		remaining--
	}
	return Decision{
		Allowed:   true,
		Limit:     perHour,
		Remaining: remaining,
		Reset:     now.Add(time.Hour),
	}
}
