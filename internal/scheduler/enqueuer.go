// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"log/slog"
	"time"

	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/uid"
)

// enqueuerOption configures an Enqueuer.
type enqueuerOption func(*Enqueuer)

// WithEnqueuerRegistry sets the deployment registry.
func WithEnqueuerRegistry(registry *Registry) enqueuerOption {
	return func(e *Enqueuer) {
		e.registry = registry
	}
}

// WithEnqueuerRunStore sets the run-history store.
func WithEnqueuerRunStore(store RunStore) enqueuerOption {
	return func(e *Enqueuer) {
		e.runStore = store
	}
}

// WithEnqueuerQueue sets the work-pool queue.
func WithEnqueuerQueue(queue RunQueue) enqueuerOption {
	return func(e *Enqueuer) {
		e.queue = queue
	}
}

// Enqueuer turns deployment schedules into run requests. It evaluates cron
// schedules at minute resolution in UTC and publishes due runs onto their
// work pools; workers do the rest.
type Enqueuer struct {
	registry *Registry
	runStore RunStore
	queue    RunQueue

	tick time.Duration
	now  func() time.Time
}

// NewEnqueuer creates an enqueuer using the option pattern.
func NewEnqueuer(opts ...enqueuerOption) *Enqueuer {
	e := &Enqueuer{
		tick: time.Minute,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start evaluates schedules until the context is cancelled.
func (e *Enqueuer) Start(ctx context.Context) error {
	next := make(map[string]time.Time)
	now := e.now().UTC()
	for _, deployment := range e.registry.Deployments() {
		if fireAt, ok := deployment.NextRun(now); ok {
			next[deployment.Name] = fireAt
		}
	}

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			e.fireDue(ctx, next)
		}
	}
}

// fireDue publishes every deployment whose schedule has passed.
func (e *Enqueuer) fireDue(ctx context.Context, next map[string]time.Time) {
	now := e.now().UTC()
	for _, deployment := range e.registry.Deployments() {
		fireAt, scheduled := next[deployment.Name]
		if !scheduled || fireAt.After(now) {
			continue
		}

		// Advance the schedule regardless of whether this tick enqueues, so
		// a skipped exclusive run does not fire immediately after.
		if nextFire, ok := deployment.NextRun(now); ok {
			next[deployment.Name] = nextFire
		}

		if deployment.Exclusive {
			active, err := e.runStore.HasActiveRun(ctx, deployment.Name)
			if err != nil {
				slog.ErrorContext(ctx, "failed to check active runs",
					"deployment", deployment.Name,
					"error", err,
				)
				continue
			}
			if active {
				slog.InfoContext(ctx, "skipping exclusive deployment with run in flight",
					"deployment", deployment.Name,
				)
				continue
			}
		}

		if err := e.Trigger(ctx, deployment.Name); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue scheduled run",
				"deployment", deployment.Name,
				"error", err,
			)
		}
	}
}

// Trigger enqueues one run of a deployment immediately; ad-hoc backfills come
// through here too.
func (e *Enqueuer) Trigger(ctx context.Context, deploymentName string) error {
	var deployment *Deployment
	for _, d := range e.registry.Deployments() {
		if d.Name == deploymentName {
			deployment = d
			break
		}
	}
	if deployment == nil {
		return errs.NewNotFound("unknown deployment: " + deploymentName)
	}

	flow, _ := e.registry.Flow(deployment.FlowName)
	runID := uid.New()

	if _, err := e.runStore.CreateRun(ctx, FlowRun{
		RunID:       runID,
		FlowName:    deployment.FlowName,
		FlowVersion: flow.Version,
		Deployment:  deployment.Name,
		PoolTag:     deployment.PoolTag,
		Parameters:  deployment.DefaultParams,
	}); err != nil {
		return err
	}

	request := RunRequest{
		RunID:      runID,
		FlowName:   deployment.FlowName,
		Deployment: deployment.Name,
		PoolTag:    deployment.PoolTag,
		Parameters: deployment.DefaultParams,
		EnqueuedAt: e.now().UTC(),
	}
	if err := e.queue.Publish(ctx, request); err != nil {
		_ = e.runStore.UpdateRunState(ctx, runID, RunCrashed, "failed to publish run", nil)
		return err
	}

	slog.InfoContext(ctx, "run enqueued",
		"deployment", deployment.Name,
		"flow", deployment.FlowName,
		"run_id", runID,
	)
	return nil
}
