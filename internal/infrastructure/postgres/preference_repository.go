// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// PreferenceRepository implements port.PreferenceRepository over Postgres.
type PreferenceRepository struct {
	client *Client
}

// NewPreferenceRepository creates a preference repository over the client.
func NewPreferenceRepository(client *Client) *PreferenceRepository {
	return &PreferenceRepository{client: client}
}

// AddIgnore records (device, bill) idempotently.
func (r *PreferenceRepository) AddIgnore(ctx context.Context, deviceID string, billID int64) error {
	_, err := r.client.db.ExecContext(ctx, `
		INSERT INTO ignored_bills (device_id, bill_id)
		VALUES ($1, $2)
		ON CONFLICT (device_id, bill_id) DO NOTHING`,
		deviceID, billID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return errs.NewNotFound("bill not found")
		}
		return errs.NewUnexpected("failed to add ignore", err)
	}
	return nil
}

// RemoveIgnore deletes the pair; absent pairs are a no-op.
func (r *PreferenceRepository) RemoveIgnore(ctx context.Context, deviceID string, billID int64) error {
	_, err := r.client.db.ExecContext(ctx,
		`DELETE FROM ignored_bills WHERE device_id = $1 AND bill_id = $2`,
		deviceID, billID)
	if err != nil {
		return errs.NewUnexpected("failed to remove ignore", err)
	}
	return nil
}

// ListIgnored returns the device's ignored bill IDs, ascending.
func (r *PreferenceRepository) ListIgnored(ctx context.Context, deviceID string) ([]int64, error) {
	rows, err := r.client.db.QueryContext(ctx,
		`SELECT bill_id FROM ignored_bills WHERE device_id = $1 ORDER BY bill_id`,
		deviceID)
	if err != nil {
		return nil, errs.NewUnexpected("failed to list ignored bills", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errs.NewUnexpected("failed to scan ignored bill", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewUnexpected("failed to iterate ignored bills", err)
	}
	return ids, nil
}

// CreateToken stores a new feed token.
func (r *PreferenceRepository) CreateToken(ctx context.Context, token model.FeedToken) (*model.FeedToken, error) {
	row := r.client.db.QueryRowContext(ctx, `
		INSERT INTO feed_tokens (token, device_id)
		VALUES ($1, $2)
		RETURNING token, device_id, created_at, last_accessed_at, access_count`,
		token.Token, token.DeviceID)

	var created model.FeedToken
	err := row.Scan(&created.Token, &created.DeviceID, &created.CreatedAt,
		&created.LastAccessedAt, &created.AccessCount)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, errs.NewConflict("feed token already exists")
		}
		return nil, errs.NewUnexpected("failed to create feed token", err)
	}
	return &created, nil
}

// ResolveToken maps a token to its record, bumping access stats.
func (r *PreferenceRepository) ResolveToken(ctx context.Context, token string) (*model.FeedToken, error) {
	row := r.client.db.QueryRowContext(ctx, `
		UPDATE feed_tokens SET
			last_accessed_at = NOW(),
			access_count = access_count + 1
		WHERE token = $1
		RETURNING token, device_id, created_at, last_accessed_at, access_count`,
		token)

	var resolved model.FeedToken
	err := row.Scan(&resolved.Token, &resolved.DeviceID, &resolved.CreatedAt,
		&resolved.LastAccessedAt, &resolved.AccessCount)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("unknown feed token")
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to resolve feed token", err)
	}
	return &resolved, nil
}

// RevokeToken deletes the mapping.
func (r *PreferenceRepository) RevokeToken(ctx context.Context, token string) error {
	result, err := r.client.db.ExecContext(ctx,
		`DELETE FROM feed_tokens WHERE token = $1`, token)
	if err != nil {
		return errs.NewUnexpected("failed to revoke feed token", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.NewUnexpected("failed to read revoke result", err)
	}
	if affected == 0 {
		return errs.NewNotFound("unknown feed token")
	}
	return nil
}
