// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"encoding/json"

	"github.com/truecivic/parliament-service/internal/scheduler"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// RunRepository implements scheduler.RunStore over Postgres.
type RunRepository struct {
	client *Client
}

// NewRunRepository creates a run-history repository over the client.
func NewRunRepository(client *Client) *RunRepository {
	return &RunRepository{client: client}
}

// CreateRun persists a new run in Pending state.
func (r *RunRepository) CreateRun(ctx context.Context, run scheduler.FlowRun) (*scheduler.FlowRun, error) {
	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return nil, errs.NewUnexpected("failed to marshal run parameters", err)
	}

	row := r.client.db.QueryRowContext(ctx, `
		INSERT INTO flow_runs (run_id, flow_name, flow_version, deployment, pool_tag, parameters, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		run.RunID, run.FlowName, run.FlowVersion, run.Deployment, run.PoolTag,
		parameters, string(scheduler.RunPending))

	run.State = scheduler.RunPending
	if err := row.Scan(&run.ID, &run.CreatedAt); err != nil {
		return nil, errs.NewUnexpected("failed to create flow run", err)
	}
	return &run, nil
}

// UpdateRunState transitions a run and stamps started/finished times.
func (r *RunRepository) UpdateRunState(ctx context.Context, runID string, state scheduler.RunState, logTail string, result map[string]any) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return errs.NewUnexpected("failed to marshal run result", err)
	}

	outcome, err := r.client.db.ExecContext(ctx, `
		UPDATE flow_runs SET
			state = $2,
			log_tail = CASE WHEN $3 <> '' THEN $3 ELSE log_tail END,
			result = CASE WHEN $4::jsonb IS NOT NULL AND $4::jsonb <> 'null' THEN $4::jsonb ELSE result END,
			started_at = CASE WHEN $2 = 'Running' AND started_at IS NULL THEN NOW() ELSE started_at END,
			finished_at = CASE WHEN $2 IN ('Completed', 'Failed', 'Crashed', 'Cancelled') AND finished_at IS NULL
				THEN NOW() ELSE finished_at END
		WHERE run_id = $1`,
		runID, string(state), logTail, encoded)
	if err != nil {
		return errs.NewUnexpected("failed to update flow run", err)
	}
	affected, err := outcome.RowsAffected()
	if err != nil {
		return errs.NewUnexpected("failed to read update result", err)
	}
	if affected == 0 {
		return errs.NewNotFound("run not found: " + runID)
	}
	return nil
}

// AppendTaskRun records one task attempt.
func (r *RunRepository) AppendTaskRun(ctx context.Context, taskRun scheduler.TaskRun) error {
	result, err := json.Marshal(taskRun.Result)
	if err != nil {
		return errs.NewUnexpected("failed to marshal task result", err)
	}

	_, err = r.client.db.ExecContext(ctx, `
		INSERT INTO task_runs (run_id, task_name, attempt, state, cache_key, cache_hit, error, result, started_at, finished_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)`,
		taskRun.RunID, taskRun.TaskName, taskRun.Attempt, string(taskRun.State),
		taskRun.CacheKey, taskRun.CacheHit, taskRun.Error, result,
		taskRun.StartedAt, taskRun.FinishedAt)
	if err != nil {
		return errs.NewUnexpected("failed to append task run", err)
	}
	return nil
}

// ListRuns returns runs newest first.
func (r *RunRepository) ListRuns(ctx context.Context, flowName string, limit int) ([]scheduler.FlowRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.client.db.QueryContext(ctx, `
		SELECT id, run_id, flow_name, flow_version, deployment, pool_tag,
			parameters, state, log_tail, result, created_at, started_at, finished_at
		FROM flow_runs
		WHERE ($1 = '' OR flow_name = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		flowName, limit)
	if err != nil {
		return nil, errs.NewUnexpected("failed to list flow runs", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []scheduler.FlowRun{}
	for rows.Next() {
		var run scheduler.FlowRun
		var state string
		var parameters, result []byte
		if err := rows.Scan(&run.ID, &run.RunID, &run.FlowName, &run.FlowVersion,
			&run.Deployment, &run.PoolTag, &parameters, &state, &run.LogTail, &result,
			&run.CreatedAt, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, errs.NewUnexpected("failed to scan flow run", err)
		}
		run.State = scheduler.RunState(state)
		if len(parameters) > 0 {
			if err := json.Unmarshal(parameters, &run.Parameters); err != nil {
				return nil, errs.NewUnexpected("failed to decode run parameters", err)
			}
		}
		if len(result) > 0 {
			if err := json.Unmarshal(result, &run.Result); err != nil {
				return nil, errs.NewUnexpected("failed to decode run result", err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewUnexpected("failed to iterate flow runs", err)
	}
	return runs, nil
}

// HasActiveRun reports whether a deployment has a run still in flight.
func (r *RunRepository) HasActiveRun(ctx context.Context, deployment string) (bool, error) {
	var count int
	err := r.client.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM flow_runs
		WHERE deployment = $1 AND state IN ('Pending', 'Running')`,
		deployment).Scan(&count)
	if err != nil {
		return false, errs.NewUnexpected("failed to count active runs", err)
	}
	return count > 0, nil
}

// IsReady probes the store.
func (r *RunRepository) IsReady(ctx context.Context) error {
	return r.client.IsReady(ctx)
}
