// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_Run(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	var counter int64
	functions := []func() error{
		func() error {
			atomic.AddInt64(&counter, 1)
			time.Sleep(10 * time.Millisecond) // Simulate work
			return nil
		},
		func() error {
			atomic.AddInt64(&counter, 2)
			time.Sleep(10 * time.Millisecond)
			return nil
		},
		func() error {
			atomic.AddInt64(&counter, 3)
			time.Sleep(10 * time.Millisecond)
			return nil
		},
	}

	err := pool.Run(ctx, functions...)
	require.NoError(t, err)
	assert.Equal(t, int64(6), atomic.LoadInt64(&counter))
}

func TestWorkerPool_Run_WithError(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	expectedError := errors.New("job failed")
	functions := []func() error{
		func() error {
			time.Sleep(10 * time.Millisecond)
			return nil
		},
		func() error {
			time.Sleep(5 * time.Millisecond)
			return expectedError
		},
		func() error {
			time.Sleep(20 * time.Millisecond)
			return nil
		},
	}

	err := pool.Run(ctx, functions...)
	require.Error(t, err)
	assert.Equal(t, expectedError, err)
}

func TestWorkerPool_Run_EmptyFunctions(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	err := pool.Run(ctx)
	require.NoError(t, err)
}

func TestWorkerPool_Run_WithCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewWorkerPool(2)

	// Cancel context immediately
	cancel()

	functions := []func() error{
		func() error {
			return nil
		},
	}

	err := pool.Run(ctx, functions...)
	require.Error(t, err)
	assert.Equal(t, context.Canceled, err)
}

func TestWorkerPool_RunCollect_DoesNotAbortSiblings(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(2)

	expectedError := errors.New("record failed")
	var completed int64
	functions := []func() error{
		func() error {
			atomic.AddInt64(&completed, 1)
			return nil
		},
		func() error {
			return expectedError
		},
		func() error {
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&completed, 1)
			return nil
		},
	}

	errs := pool.RunCollect(ctx, functions...)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.Equal(t, expectedError, errs[1])
	assert.NoError(t, errs[2])
	assert.Equal(t, int64(2), atomic.LoadInt64(&completed))
}

func TestWorkerPool_RunCollect_BoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(3)

	var inFlight, peak int64
	fn := func() error {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil
	}

	functions := make([]func() error, 12)
	for i := range functions {
		functions[i] = fn
	}

	errs := pool.RunCollect(ctx, functions...)
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(3))
}

func TestWorkerPool_RunCollect_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := NewWorkerPool(2)

	errs := pool.RunCollect(ctx, func() error { return nil })
	require.Len(t, errs, 1)
	assert.Equal(t, context.Canceled, errs[0])
}
