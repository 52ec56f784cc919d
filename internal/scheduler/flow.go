// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package scheduler is the durable flow runtime: named flows composed of
// retryable tasks, cron-scheduled deployments bound to work pools, workers
// that claim runs from a pool, and persisted run history.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Defaults for task execution.
const (
	DefaultTaskRetries     = 3
	DefaultTaskRetryDelay  = 60 * time.Second
	DefaultTaskTimeout     = 10 * time.Minute
	DefaultTaskCacheTTL    = time.Hour
	DefaultTaskConcurrency = 10
)

// TaskFunc is the unit of work. The returned value is persisted as the task's
// structured result.
type TaskFunc func(ctx context.Context, params map[string]any) (any, error)

// Task is one retryable step of a flow. Metadata lives alongside the function
// reference in the flow definition, not in decorators or globals.
type Task struct {
	Name string
	Run  TaskFunc

	// DependsOn lists task names that must complete before this one starts.
	// Independent tasks run concurrently up to the worker's limit.
	DependsOn []string

	// Retries is the number of retries after the first attempt. Zero means
	// the default of 3; use -1 to disable retries.
	Retries int
	// RetryDelay seeds the exponential backoff between attempts (default 60s).
	RetryDelay time.Duration
	// Timeout is the soft per-attempt timeout (default 10 min). An attempt
	// exceeding it fails and retries per policy.
	Timeout time.Duration

	// CacheKeyFn derives the cache key from the task inputs; nil disables
	// result caching.
	CacheKeyFn func(params map[string]any) string
	// CacheTTL bounds cached-result reuse (default 1h).
	CacheTTL time.Duration
}

func (t Task) retries() int {
	if t.Retries == 0 {
		return DefaultTaskRetries
	}
	if t.Retries < 0 {
		return 0
	}
	return t.Retries
}

func (t Task) retryDelay() time.Duration {
	if t.RetryDelay <= 0 {
		return DefaultTaskRetryDelay
	}
	return t.RetryDelay
}

func (t Task) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTaskTimeout
	}
	return t.Timeout
}

func (t Task) cacheTTL() time.Duration {
	if t.CacheTTL <= 0 {
		return DefaultTaskCacheTTL
	}
	return t.CacheTTL
}

// Flow is a named, versioned ingestion program.
type Flow struct {
	Name    string
	Version int
	Tasks   []Task
}

// validate rejects unknown dependency references and duplicate task names.
func (f Flow) validate() error {
	names := make(map[string]bool, len(f.Tasks))
	for _, task := range f.Tasks {
		if task.Name == "" {
			return fmt.Errorf("flow %s has an unnamed task", f.Name)
		}
		if names[task.Name] {
			return fmt.Errorf("flow %s declares task %s twice", f.Name, task.Name)
		}
		names[task.Name] = true
	}
	for _, task := range f.Tasks {
		for _, dep := range task.DependsOn {
			if !names[dep] {
				return fmt.Errorf("flow %s task %s depends on unknown task %s", f.Name, task.Name, dep)
			}
		}
	}
	return nil
}

// RunState is the lifecycle of one flow run.
type RunState string

const (
	RunPending   RunState = "Pending"
	RunRunning   RunState = "Running"
	RunCompleted RunState = "Completed"
	RunFailed    RunState = "Failed"
	RunCrashed   RunState = "Crashed"
	RunCancelled RunState = "Cancelled"
)

// terminal reports whether the state ends the run.
func (s RunState) terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCrashed, RunCancelled:
		return true
	}
	return false
}

// FlowRun is the persisted record of one run.
type FlowRun struct {
	ID          int64          `json:"id,omitempty"`
	RunID       string         `json:"run_id"`
	FlowName    string         `json:"flow_name"`
	FlowVersion int            `json:"flow_version"`
	Deployment  string         `json:"deployment,omitempty"`
	PoolTag     string         `json:"pool_tag"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	State       RunState       `json:"state"`
	LogTail     string         `json:"log_tail,omitempty"`
	Result      map[string]any `json:"result,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TaskRun is the persisted record of one task attempt sequence.
type TaskRun struct {
	ID       int64    `json:"id,omitempty"`
	RunID    string   `json:"run_id"`
	TaskName string   `json:"task_name"`
	Attempt  int      `json:"attempt"`
	State    RunState `json:"state"`
	CacheKey string   `json:"cache_key,omitempty"`
	CacheHit bool     `json:"cache_hit"`
	Error    string   `json:"error,omitempty"`
	Result   any      `json:"result,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CacheKeyFromInputs hashes the task name plus its input tuple into a stable
// cache key.
func CacheKeyFromInputs(taskName string, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hasher := sha256.New()
	hasher.Write([]byte(taskName))
	for _, k := range keys {
		hasher.Write([]byte(k))
		value, _ := json.Marshal(params[k])
		hasher.Write(value)
	}
	return "task-result:" + hex.EncodeToString(hasher.Sum(nil))
}
