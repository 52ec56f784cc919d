// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// FetchLogRepository implements port.FetchLogRepository over Postgres.
type FetchLogRepository struct {
	client *Client
}

// NewFetchLogRepository creates a fetch-log repository over the client.
func NewFetchLogRepository(client *Client) *FetchLogRepository {
	return &FetchLogRepository{client: client}
}

// Append persists one entry.
func (r *FetchLogRepository) Append(ctx context.Context, entry model.FetchLog) (*model.FetchLog, error) {
	parameters, err := json.Marshal(entry.Parameters)
	if err != nil {
		return nil, errs.NewUnexpected("failed to marshal fetch parameters", err)
	}
	summary, err := json.Marshal(entry.ErrorSummary)
	if err != nil {
		return nil, errs.NewUnexpected("failed to marshal error summary", err)
	}

	row := r.client.db.QueryRowContext(ctx, `
		INSERT INTO fetch_logs (
			source, status, records_attempted, records_succeeded, records_failed,
			duration_ms, parameters, error_summary
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		entry.Source, string(entry.Status),
		entry.RecordsAttempted, entry.RecordsSucceeded, entry.RecordsFailed,
		entry.Duration.Milliseconds(), parameters, summary)

	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return nil, errs.NewUnexpected("failed to append fetch log", err)
	}
	return &entry, nil
}

// GetByFilter lists entries newest first.
func (r *FetchLogRepository) GetByFilter(ctx context.Context, filter model.FetchLogFilter, page paging.Params) ([]model.FetchLog, int, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Source != nil {
		add("source = $%d", *filter.Source)
	}
	if filter.Status != nil {
		add("status = $%d", string(*filter.Status))
	}

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fetch_logs WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count fetch logs", err)
	}

	if page.Limit == 0 {
		return []model.FetchLog{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT id, source, status, records_attempted, records_succeeded, records_failed,
			duration_ms, parameters, error_summary, created_at
		FROM fetch_logs
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list fetch logs", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []model.FetchLog{}
	for rows.Next() {
		var entry model.FetchLog
		var status string
		var durationMS int64
		var parameters, summary []byte
		if err := rows.Scan(&entry.ID, &entry.Source, &status,
			&entry.RecordsAttempted, &entry.RecordsSucceeded, &entry.RecordsFailed,
			&durationMS, &parameters, &summary, &entry.CreatedAt); err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan fetch log", err)
		}
		entry.Status = model.FetchStatus(status)
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		if len(parameters) > 0 {
			if err := json.Unmarshal(parameters, &entry.Parameters); err != nil {
				return nil, 0, errs.NewUnexpected("failed to decode fetch parameters", err)
			}
		}
		if len(summary) > 0 {
			if err := json.Unmarshal(summary, &entry.ErrorSummary); err != nil {
				return nil, 0, errs.NewUnexpected("failed to decode error summary", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate fetch logs", err)
	}
	return entries, total, nil
}
