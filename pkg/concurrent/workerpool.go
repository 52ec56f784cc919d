// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// WorkerPool represents a pool of workers that can process jobs concurrently
type WorkerPool struct {
	workerCount int
}

// Run executes all functions using errgroup with goroutine limiting
// Returns the first error encountered, and cancels remaining work
func (wp *WorkerPool) Run(ctx context.Context, functions ...func() error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			// Check if context was cancelled before starting
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			return fn()
		})
	}

	return g.Wait()
}

// RunCollect executes all functions with the same goroutine limit but never
// cancels siblings on failure: every function runs to completion unless the
// parent context is cancelled, and the per-index errors are returned for the
// caller to aggregate. Ingestion fan-out uses this so one bad record cannot
// abort a batch.
func (wp *WorkerPool) RunCollect(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	errs := make([]error, len(functions))

	var wg sync.WaitGroup
	sem := make(chan struct{}, wp.workerCount)

	for i, fn := range functions {
		// Cancellation is checked between units of work, not mid-flight.
		if ctx.Err() != nil {
			errs[i] = ctx.Err()
			continue
		}
		select {
		case <-ctx.Done():
			errs[i] = ctx.Err()
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = fn()
		}()
	}

	wg.Wait()
	return errs
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workerCount int) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &WorkerPool{
		workerCount: workerCount,
	}
}
