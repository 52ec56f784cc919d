// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// APIKeyRepository implements port.APIKeyRepository over Postgres.
type APIKeyRepository struct {
	client *Client
}

// NewAPIKeyRepository creates an API-key repository over the client.
func NewAPIKeyRepository(client *Client) *APIKeyRepository {
	return &APIKeyRepository{client: client}
}

const apiKeyColumns = `id, name, key_hash, active, requests_per_hour,
	expires_at, last_used_at, request_count, created_at, updated_at`

func scanAPIKey(scanner interface{ Scan(...any) error }) (*model.APIKey, error) {
	var k model.APIKey
	err := scanner.Scan(
		&k.ID, &k.Name, &k.KeyHash, &k.Active, &k.RequestsPerHour,
		&k.ExpiresAt, &k.LastUsedAt, &k.RequestCount, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// GetByHash returns the key record whose hash matches.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	row := r.client.db.QueryRowContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, keyHash)

	key, err := scanAPIKey(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("API key not found")
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to query API key", err)
	}
	return key, nil
}

// Create stores a new key record.
func (r *APIKeyRepository) Create(ctx context.Context, key model.APIKey) (*model.APIKey, error) {
	row := r.client.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (name, key_hash, active, requests_per_hour, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apiKeyColumns,
		key.Name, key.KeyHash, key.Active, key.RequestsPerHour, key.ExpiresAt)

	created, err := scanAPIKey(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, errs.NewConflict("API key hash already exists")
		}
		return nil, errs.NewUnexpected("failed to create API key", err)
	}
	return created, nil
}

// List returns every key, newest first.
func (r *APIKeyRepository) List(ctx context.Context) ([]model.APIKey, error) {
	rows, err := r.client.db.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, errs.NewUnexpected("failed to list API keys", err)
	}
	defer func() { _ = rows.Close() }()

	keys := []model.APIKey{}
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, errs.NewUnexpected("failed to scan API key", err)
		}
		keys = append(keys, *key)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewUnexpected("failed to iterate API keys", err)
	}
	return keys, nil
}

// Update persists mutable fields.
func (r *APIKeyRepository) Update(ctx context.Context, key model.APIKey) (*model.APIKey, error) {
	row := r.client.db.QueryRowContext(ctx, `
		UPDATE api_keys SET
			name = $2,
			active = $3,
			requests_per_hour = $4,
			expires_at = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+apiKeyColumns,
		key.ID, key.Name, key.Active, key.RequestsPerHour, key.ExpiresAt)

	updated, err := scanAPIKey(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("API key not found")
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to update API key", err)
	}
	return updated, nil
}

// Delete removes a key permanently.
func (r *APIKeyRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.client.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return errs.NewUnexpected("failed to delete API key", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errs.NewUnexpected("failed to read delete result", err)
	}
	if affected == 0 {
		return errs.NewNotFound("API key not found")
	}
	return nil
}

// RecordUsage adds batched usage counts.
func (r *APIKeyRepository) RecordUsage(ctx context.Context, id int64, requests int64, lastUsed time.Time) error {
	_, err := r.client.db.ExecContext(ctx, `
		UPDATE api_keys SET
			request_count = request_count + $2,
			last_used_at = GREATEST(COALESCE(last_used_at, $3), $3)
		WHERE id = $1`,
		id, requests, lastUsed)
	if err != nil {
		return errs.NewUnexpected("failed to record API key usage", err)
	}
	return nil
}
