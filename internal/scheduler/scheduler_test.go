// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecivic/parliament-service/internal/infrastructure/memory"
	"github.com/truecivic/parliament-service/pkg/uid"
)

func runWorkerOn(t *testing.T, flow Flow, params map[string]any) (*MemoryRunStore, string) {
	t.Helper()

	registry := NewRegistry()
	require.NoError(t, registry.RegisterFlow(flow))

	store := NewMemoryRunStore()
	worker := NewWorker(WorkerConfig{Name: "w1", PoolTag: "test-pool", TaskConcurrency: 4},
		WithRegistry(registry),
		WithRunStore(store),
		WithQueue(NewMemoryQueue()),
		WithResultCache(memory.NewCache()),
	)

	runID := uid.New()
	_, err := store.CreateRun(context.Background(), FlowRun{
		RunID:    runID,
		FlowName: flow.Name,
		PoolTag:  "test-pool",
	})
	require.NoError(t, err)

	worker.handle(context.Background(), RunRequest{
		RunID:      runID,
		FlowName:   flow.Name,
		PoolTag:    "test-pool",
		Parameters: params,
	})
	return store, runID
}

func runState(t *testing.T, store *MemoryRunStore, runID string) FlowRun {
	t.Helper()
	runs, err := store.ListRuns(context.Background(), "", 100)
	require.NoError(t, err)
	for _, run := range runs {
		if run.RunID == runID {
			return run
		}
	}
	t.Fatalf("run %s not found", runID)
	return FlowRun{}
}

func TestWorkerCompletesFlow(t *testing.T) {
	var order []string
	flow := Flow{
		Name: "bills-sync",
		Tasks: []Task{
			{
				Name:    "fetch",
				Retries: -1,
				Run: func(ctx context.Context, params map[string]any) (any, error) {
					order = append(order, "fetch")
					return map[string]any{"fetched": 10}, nil
				},
			},
			{
				Name:      "persist",
				DependsOn: []string{"fetch"},
				Retries:   -1,
				Run: func(ctx context.Context, params map[string]any) (any, error) {
					order = append(order, "persist")
					return map[string]any{"created": 10}, nil
				},
			},
		},
	}

	store, runID := runWorkerOn(t, flow, nil)

	run := runState(t, store, runID)
	assert.Equal(t, RunCompleted, run.State)
	assert.NotNil(t, run.StartedAt)
	assert.NotNil(t, run.FinishedAt)
	// Dependency order held.
	assert.Equal(t, []string{"fetch", "persist"}, order)
}

func TestWorkerRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	flow := Flow{
		Name: "flaky",
		Tasks: []Task{{
			Name:       "sometimes",
			Retries:    3,
			RetryDelay: time.Millisecond,
			Run: func(ctx context.Context, params map[string]any) (any, error) {
				if atomic.AddInt32(&attempts, 1) < 3 {
					return nil, errors.New("transient upstream failure")
				}
				return "ok", nil
			},
		}},
	}

	store, runID := runWorkerOn(t, flow, nil)

	assert.Equal(t, RunCompleted, runState(t, store, runID).State)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))

	taskRuns := store.TaskRuns(runID)
	require.Len(t, taskRuns, 3)
	assert.Equal(t, RunFailed, taskRuns[0].State)
	assert.Equal(t, RunFailed, taskRuns[1].State)
	assert.Equal(t, RunCompleted, taskRuns[2].State)
}

func TestWorkerExhaustedRetriesFailRun(t *testing.T) {
	flow := Flow{
		Name: "doomed",
		Tasks: []Task{
			{
				Name:       "always-fails",
				Retries:    1,
				RetryDelay: time.Millisecond,
				Run: func(ctx context.Context, params map[string]any) (any, error) {
					return nil, errors.New("boom")
				},
			},
			{
				Name:      "never-starts",
				DependsOn: []string{"always-fails"},
				Run: func(ctx context.Context, params map[string]any) (any, error) {
					t.Fatal("dependent task must not start after dependency failure")
					return nil, nil
				},
			},
		},
	}

	store, runID := runWorkerOn(t, flow, nil)

	run := runState(t, store, runID)
	assert.Equal(t, RunFailed, run.State)
	assert.Contains(t, run.LogTail, "always-fails")

	var cancelledDependent bool
	for _, tr := range store.TaskRuns(runID) {
		if tr.TaskName == "never-starts" && tr.State == RunCancelled {
			cancelledDependent = true
		}
	}
	assert.True(t, cancelledDependent)
}

func TestTaskResultCache(t *testing.T) {
	var calls int32
	task := Task{
		Name:    "cached",
		Retries: -1,
		CacheKeyFn: func(params map[string]any) string {
			return CacheKeyFromInputs("cached", params)
		},
		CacheTTL: time.Minute,
		Run: func(ctx context.Context, params map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			return map[string]any{"value": 42}, nil
		},
	}

	registry := NewRegistry()
	require.NoError(t, registry.RegisterFlow(Flow{Name: "cache-flow", Tasks: []Task{task}}))

	store := NewMemoryRunStore()
	worker := NewWorker(WorkerConfig{Name: "w1", PoolTag: "p"},
		WithRegistry(registry),
		WithRunStore(store),
		WithQueue(NewMemoryQueue()),
		WithResultCache(memory.NewCache()),
	)

	params := map[string]any{"parliament": 44}
	for i := 0; i < 2; i++ {
		runID := uid.New()
		_, err := store.CreateRun(context.Background(), FlowRun{RunID: runID, FlowName: "cache-flow", PoolTag: "p"})
		require.NoError(t, err)
		worker.handle(context.Background(), RunRequest{
			RunID: runID, FlowName: "cache-flow", PoolTag: "p", Parameters: params,
		})
	}

	// Identical inputs within the TTL: the second run served from cache.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheKeyFromInputsStable(t *testing.T) {
	a := CacheKeyFromInputs("t", map[string]any{"x": 1, "y": "z"})
	b := CacheKeyFromInputs("t", map[string]any{"y": "z", "x": 1})
	c := CacheKeyFromInputs("t", map[string]any{"x": 2, "y": "z"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestRegistryRejectsBadFlows(t *testing.T) {
	registry := NewRegistry()

	err := registry.RegisterFlow(Flow{Name: "bad", Tasks: []Task{
		{Name: "a", DependsOn: []string{"ghost"}, Run: func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }},
	}})
	assert.Error(t, err)

	require.NoError(t, registry.RegisterFlow(Flow{Name: "ok", Tasks: []Task{
		{Name: "a", Run: func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }},
	}}))
	assert.Error(t, registry.RegisterDeployment(Deployment{FlowName: "missing"}))
	assert.Error(t, registry.RegisterDeployment(Deployment{FlowName: "ok", Schedule: "not cron"}))
	require.NoError(t, registry.RegisterDeployment(Deployment{
		Name: "ok-hourly", FlowName: "ok", Schedule: "0 * * * *", PoolTag: "pool",
	}))

	deployments := registry.Deployments()
	require.Len(t, deployments, 1)
	next, ok := deployments[0].NextRun(time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 8, 1, 11, 0, 0, 0, time.UTC), next)
}

func TestEnqueuerTrigger(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.RegisterFlow(Flow{Name: "f", Tasks: []Task{
		{Name: "t", Run: func(ctx context.Context, params map[string]any) (any, error) { return nil, nil }},
	}}))
	require.NoError(t, registry.RegisterDeployment(Deployment{
		Name: "f-nightly", FlowName: "f", Schedule: "0 6 * * *", PoolTag: "pool",
		DefaultParams: map[string]any{"limit": 50},
	}))

	store := NewMemoryRunStore()
	queue := NewMemoryQueue()
	enqueuer := NewEnqueuer(
		WithEnqueuerRegistry(registry),
		WithEnqueuerRunStore(store),
		WithEnqueuerQueue(queue),
	)

	require.NoError(t, enqueuer.Trigger(context.Background(), "f-nightly"))

	runs, err := store.ListRuns(context.Background(), "f", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, RunPending, runs[0].State)
	assert.Equal(t, "f-nightly", runs[0].Deployment)

	// The published request carries the same run ID.
	ctx, cancel := context.WithCancel(context.Background())
	var claimed RunRequest
	go func() {
		_ = queue.Consume(ctx, "pool", func(_ context.Context, request RunRequest) {
			claimed = request
			cancel()
		})
	}()
	<-ctx.Done()
	assert.Equal(t, runs[0].RunID, claimed.RunID)

	assert.Error(t, enqueuer.Trigger(context.Background(), "ghost"))
}

func TestWorkerStartRequiresReadyDependencies(t *testing.T) {
	worker := NewWorker(WorkerConfig{Name: "w", PoolTag: "p"})
	err := worker.Start(context.Background())
	assert.Error(t, err)
}
