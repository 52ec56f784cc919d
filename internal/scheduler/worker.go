// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/port"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/log"
	"github.com/truecivic/parliament-service/pkg/uid"
)

// WorkerConfig holds worker identity and limits.
type WorkerConfig struct {
	Name    string
	PoolTag string
	// TaskConcurrency bounds concurrent tasks within one run (default 10).
	TaskConcurrency int
}

// workerOption configures a Worker.
type workerOption func(*Worker)

// WithRegistry sets the flow registry.
func WithRegistry(registry *Registry) workerOption {
	return func(w *Worker) {
		w.registry = registry
	}
}

// WithRunStore sets the run-history store.
func WithRunStore(store RunStore) workerOption {
	return func(w *Worker) {
		w.runStore = store
	}
}

// WithQueue sets the work-pool queue.
func WithQueue(queue RunQueue) workerOption {
	return func(w *Worker) {
		w.queue = queue
	}
}

// WithResultCache sets the task-result cache.
func WithResultCache(cache port.Cache) workerOption {
	return func(w *Worker) {
		w.cache = cache
	}
}

// Worker polls one work pool and executes claimed runs.
type Worker struct {
	config   WorkerConfig
	registry *Registry
	runStore RunStore
	queue    RunQueue
	cache    port.Cache

	now func() time.Time
}

// NewWorker creates a worker using the option pattern.
func NewWorker(config WorkerConfig, opts ...workerOption) *Worker {
	if config.TaskConcurrency <= 0 {
		config.TaskConcurrency = DefaultTaskConcurrency
	}
	w := &Worker{
		config: config,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start verifies connectivity to the run store and the work pool, then
// consumes runs until the context is cancelled. A startup probe failure is
// returned without claiming any run.
func (w *Worker) Start(ctx context.Context) error {
	if w.runStore == nil || w.queue == nil || w.registry == nil {
		return errs.NewValidation("worker requires a registry, run store, and queue")
	}

	if err := w.runStore.IsReady(ctx); err != nil {
		return errs.NewServiceUnavailable("run-history store not ready", err)
	}
	if err := w.queue.IsReady(ctx); err != nil {
		return errs.NewServiceUnavailable("work pool not ready", err)
	}

	slog.InfoContext(ctx, "worker started",
		"worker", w.config.Name,
		"pool", w.config.PoolTag,
		"task_concurrency", w.config.TaskConcurrency,
	)

	return w.queue.Consume(ctx, w.config.PoolTag, w.handle)
}

// handle claims one run request.
func (w *Worker) handle(ctx context.Context, request RunRequest) {
	ctx = log.AppendCtx(ctx, slog.String("run_id", request.RunID))

	flow, ok := w.registry.Flow(request.FlowName)
	if !ok {
		slog.ErrorContext(ctx, "claimed run for unknown flow",
			"flow", request.FlowName,
		)
		_ = w.runStore.UpdateRunState(ctx, request.RunID, RunCrashed,
			"unknown flow "+request.FlowName, nil)
		return
	}

	// Ad-hoc requests may arrive without a pre-created run record.
	if request.RunID == "" {
		request.RunID = uid.New()
		if _, err := w.runStore.CreateRun(ctx, FlowRun{
			RunID:       request.RunID,
			FlowName:    flow.Name,
			FlowVersion: flow.Version,
			Deployment:  request.Deployment,
			PoolTag:     request.PoolTag,
			Parameters:  request.Parameters,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to create ad-hoc run", "error", err)
			return
		}
	}

	w.executeRun(ctx, flow, request)
}

type taskOutcome struct {
	state RunState
	err   error
}

// executeRun drives one run to a terminal state. Task start order follows
// declared dependencies; independent tasks run concurrently up to the
// worker's limit. Cancellation is cooperative: checked between tasks,
// in-flight tasks finish.
func (w *Worker) executeRun(ctx context.Context, flow Flow, request RunRequest) {
	if err := w.runStore.UpdateRunState(ctx, request.RunID, RunRunning, "", nil); err != nil {
		slog.ErrorContext(ctx, "failed to mark run running", "error", err)
		return
	}

	var (
		mu       sync.Mutex
		outcomes = make(map[string]taskOutcome, len(flow.Tasks))
		started  = make(map[string]bool, len(flow.Tasks))
		wg       sync.WaitGroup
		sem      = make(chan struct{}, w.config.TaskConcurrency)
	)

	cancelled := false
	for len(outcomes) < len(flow.Tasks) {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		launched := false
		for _, task := range flow.Tasks {
			mu.Lock()
			_, done := outcomes[task.Name]
			running := started[task.Name]
			ready := !done && !running
			var blockedBy *taskOutcome
			if ready {
				for _, dep := range task.DependsOn {
					outcome, depDone := outcomes[dep]
					if !depDone {
						ready = false
						break
					}
					if outcome.state != RunCompleted {
						blockedBy = &outcome
						break
					}
				}
			}
			if ready && blockedBy != nil {
				// A dependency failed; this task never starts.
				outcomes[task.Name] = taskOutcome{state: RunCancelled, err: blockedBy.err}
				mu.Unlock()
				_ = w.runStore.AppendTaskRun(ctx, TaskRun{
					RunID:    request.RunID,
					TaskName: task.Name,
					State:    RunCancelled,
					Error:    "dependency failed",
				})
				launched = true
				continue
			}
			if !ready {
				mu.Unlock()
				continue
			}
			started[task.Name] = true
			mu.Unlock()

			launched = true
			wg.Add(1)
			go func(task Task) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()

				outcome := w.executeTask(ctx, request, task)

				mu.Lock()
				outcomes[task.Name] = outcome
				mu.Unlock()
			}(task)
		}

		if !launched {
			// Nothing became ready this pass; wait for in-flight tasks to
			// finish and re-evaluate.
			wg.Wait()
		}
	}

	wg.Wait()

	state := RunCompleted
	var failures []string
	mu.Lock()
	for name, outcome := range outcomes {
		if outcome.state == RunFailed {
			state = RunFailed
			failures = append(failures, fmt.Sprintf("%s: %v", name, outcome.err))
		}
	}
	mu.Unlock()
	if cancelled {
		state = RunCancelled
	}

	logTail := ""
	if len(failures) > 0 {
		logTail = fmt.Sprintf("%d task(s) failed: %v", len(failures), failures)
	}

	if err := w.runStore.UpdateRunState(ctx, request.RunID, state, logTail, map[string]any{
		"tasks": len(flow.Tasks),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to finalize run", "error", err)
	}

	slog.InfoContext(ctx, "run finished",
		"flow", flow.Name,
		"state", string(state),
	)
}

// executeTask runs one task with caching, retries, and the soft timeout.
func (w *Worker) executeTask(ctx context.Context, request RunRequest, task Task) taskOutcome {
	cacheKey := ""
	if task.CacheKeyFn != nil {
		cacheKey = task.CacheKeyFn(request.Parameters)
	}

	if cacheKey != "" && w.cache != nil {
		if cached, err := w.cache.Get(ctx, cacheKey); err == nil {
			var result any
			_ = json.Unmarshal(cached, &result)
			_ = w.runStore.AppendTaskRun(ctx, TaskRun{
				RunID:    request.RunID,
				TaskName: task.Name,
				State:    RunCompleted,
				CacheKey: cacheKey,
				CacheHit: true,
				Result:   result,
			})
			return taskOutcome{state: RunCompleted}
		}
	}

	attempts := task.retries() + 1
	delay := task.retryDelay()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return taskOutcome{state: RunCancelled, err: ctx.Err()}
		}

		startedAt := w.now()
		attemptCtx, cancel := context.WithTimeout(ctx, task.timeout())
		result, err := task.Run(attemptCtx, request.Parameters)
		cancel()
		finishedAt := w.now()

		taskRun := TaskRun{
			RunID:      request.RunID,
			TaskName:   task.Name,
			Attempt:    attempt,
			CacheKey:   cacheKey,
			StartedAt:  &startedAt,
			FinishedAt: &finishedAt,
		}

		if err == nil {
			taskRun.State = RunCompleted
			taskRun.Result = result
			_ = w.runStore.AppendTaskRun(ctx, taskRun)

			if cacheKey != "" && w.cache != nil {
				if encoded, marshalErr := json.Marshal(result); marshalErr == nil {
					_ = w.cache.Set(ctx, cacheKey, encoded, task.cacheTTL())
				}
			}
			return taskOutcome{state: RunCompleted}
		}

		lastErr = err
		taskRun.State = RunFailed
		taskRun.Error = err.Error()
		_ = w.runStore.AppendTaskRun(ctx, taskRun)

		slog.WarnContext(ctx, "task attempt failed",
			"task", task.Name,
			"attempt", attempt,
			"error", err,
		)

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return taskOutcome{state: RunCancelled, err: ctx.Err()}
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return taskOutcome{state: RunFailed, err: lastErr}
}
