// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// RunStore persists flow and task run history. Re-running a flow never
// overwrites prior history; every run is a fresh record.
type RunStore interface {
	// CreateRun persists a new run in Pending state.
	CreateRun(ctx context.Context, run FlowRun) (*FlowRun, error)

	// UpdateRunState transitions a run and stamps started/finished times.
	UpdateRunState(ctx context.Context, runID string, state RunState, logTail string, result map[string]any) error

	// AppendTaskRun records one task attempt sequence.
	AppendTaskRun(ctx context.Context, taskRun TaskRun) error

	// ListRuns returns runs for a flow, newest first; empty flowName lists
	// all.
	ListRuns(ctx context.Context, flowName string, limit int) ([]FlowRun, error)

	// HasActiveRun reports whether a deployment has a run still in flight;
	// exclusive deployments consult it before enqueueing.
	HasActiveRun(ctx context.Context, deployment string) (bool, error)

	// IsReady probes the store; workers refuse to start without it.
	IsReady(ctx context.Context) error
}

// MemoryRunStore is the in-memory RunStore for development mode and tests.
type MemoryRunStore struct {
	mu       sync.RWMutex
	runs     map[string]*FlowRun
	taskRuns []TaskRun
	order    []string
	now      func() time.Time
}

// NewMemoryRunStore creates an empty run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs: make(map[string]*FlowRun),
		now:  time.Now,
	}
}

// CreateRun persists a new run.
func (s *MemoryRunStore) CreateRun(ctx context.Context, run FlowRun) (*FlowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return nil, errs.NewConflict("run already exists: " + run.RunID)
	}
	run.State = RunPending
	run.CreatedAt = s.now()
	stored := run
	s.runs[run.RunID] = &stored
	s.order = append(s.order, run.RunID)

	out := stored
	return &out, nil
}

// UpdateRunState transitions a run.
func (s *MemoryRunStore) UpdateRunState(ctx context.Context, runID string, state RunState, logTail string, result map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return errs.NewNotFound("run not found: " + runID)
	}

	now := s.now()
	run.State = state
	if logTail != "" {
		run.LogTail = logTail
	}
	if result != nil {
		run.Result = result
	}
	if state == RunRunning && run.StartedAt == nil {
		run.StartedAt = &now
	}
	if state.terminal() && run.FinishedAt == nil {
		run.FinishedAt = &now
	}
	return nil
}

// AppendTaskRun records one task attempt sequence.
func (s *MemoryRunStore) AppendTaskRun(ctx context.Context, taskRun TaskRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	taskRun.ID = int64(len(s.taskRuns) + 1)
	s.taskRuns = append(s.taskRuns, taskRun)
	return nil
}

// ListRuns returns runs newest first.
func (s *MemoryRunStore) ListRuns(ctx context.Context, flowName string, limit int) ([]FlowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []FlowRun
	for i := len(s.order) - 1; i >= 0; i-- {
		run := s.runs[s.order[i]]
		if flowName != "" && run.FlowName != flowName {
			continue
		}
		out = append(out, *run)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// TaskRuns returns recorded task attempts for a run, in append order.
func (s *MemoryRunStore) TaskRuns(runID string) []TaskRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []TaskRun
	for _, tr := range s.taskRuns {
		if tr.RunID == runID {
			out = append(out, tr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// HasActiveRun reports whether a deployment has a non-terminal run.
func (s *MemoryRunStore) HasActiveRun(ctx context.Context, deployment string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.runs {
		if run.Deployment == deployment && !run.State.terminal() {
			return true, nil
		}
	}
	return false, nil
}

// IsReady implements the readiness probe.
func (s *MemoryRunStore) IsReady(ctx context.Context) error {
	return nil
}
