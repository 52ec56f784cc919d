// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

func TestSourceLimiterAcquireWithinBurst(t *testing.T) {
	ctx := context.Background()
	limiter := NewSourceLimiter("catalogue", 2, 10)

	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Acquire(ctx, time.Second))
	}
}

func TestSourceLimiterTimeoutIsRateLimited(t *testing.T) {
	ctx := context.Background()
	limiter := NewSourceLimiter("enrichment", 0.5, 1)

	// Drain the single burst token; the next acquire cannot succeed within
	// 10ms at 0.5 tokens/sec.
	require.NoError(t, limiter.Acquire(ctx, time.Second))

	err := limiter.Acquire(ctx, 10*time.Millisecond)
	require.Error(t, err)
	var rl errs.RateLimited
	assert.ErrorAs(t, err, &rl)
}

func TestSourceLimiterRespectsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	limiter := NewSourceLimiter("catalogue", 0.1, 1)
	require.NoError(t, limiter.Acquire(ctx, time.Second))

	cancel()
	err := limiter.Acquire(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistryExhaustion(t *testing.T) {
	registry := NewRegistry()

	var last Decision
	for i := 0; i < 5; i++ {
		last = registry.Allow("key-1", 5)
		assert.True(t, last.Allowed, "request %d should pass", i+1)
	}

	denied := registry.Allow("key-1", 5)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 5, denied.Limit)
	assert.Equal(t, 0, denied.Remaining)
	assert.Greater(t, denied.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, denied.RetryAfter, time.Hour)
}

func TestRegistryKeysAreIndependent(t *testing.T) {
	registry := NewRegistry()

	for i := 0; i < 3; i++ {
		registry.Allow("key-a", 3)
	}
	assert.False(t, registry.Allow("key-a", 3).Allowed)
	assert.True(t, registry.Allow("key-b", 3).Allowed)
}

func TestRegistryResizeReplacesBucket(t *testing.T) {
	registry := NewRegistry()

	for i := 0; i < 2; i++ {
		registry.Allow("key-r", 2)
	}
	assert.False(t, registry.Allow("key-r", 2).Allowed)

	// Operator raised the limit; the bucket is rebuilt at the new size.
	assert.True(t, registry.Allow("key-r", 100).Allowed)
}
