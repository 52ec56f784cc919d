// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

type apiKeyRow struct {
	key model.APIKey
}

// APIKeyRepository implements port.APIKeyRepository on the in-memory store.
type APIKeyRepository struct {
	store *Store
}

// NewAPIKeyRepository creates an API-key repository over the store.
func NewAPIKeyRepository(store *Store) *APIKeyRepository {
	return &APIKeyRepository{store: store}
}

// GetByHash returns the key record whose hash matches.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, row := range r.store.apiKeys {
		if row.key.KeyHash == keyHash {
			key := row.key
			return &key, nil
		}
	}
	return nil, errs.NewNotFound("API key not found")
}

// Create stores a new key record; the hash must be unique.
func (r *APIKeyRepository) Create(ctx context.Context, key model.APIKey) (*model.APIKey, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, row := range r.store.apiKeys {
		if row.key.KeyHash == key.KeyHash {
			return nil, errs.NewConflict("API key hash already exists")
		}
	}

	now := r.store.now()
	key.ID = r.store.nextSurrogate()
	key.CreatedAt = now
	key.UpdatedAt = now
	r.store.apiKeys[key.ID] = &apiKeyRow{key: key}

	stored := key
	return &stored, nil
}

// List returns every key, newest first.
func (r *APIKeyRepository) List(ctx context.Context) ([]model.APIKey, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	keys := make([]model.APIKey, 0, len(r.store.apiKeys))
	for _, row := range r.store.apiKeys {
		keys = append(keys, row.key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].ID > keys[j].ID
	})
	return keys, nil
}

// Update persists mutable fields.
func (r *APIKeyRepository) Update(ctx context.Context, key model.APIKey) (*model.APIKey, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row, ok := r.store.apiKeys[key.ID]
	if !ok {
		return nil, errs.NewNotFound("API key not found")
	}

	row.key.Name = key.Name
	row.key.Active = key.Active
	row.key.RequestsPerHour = key.RequestsPerHour
	row.key.ExpiresAt = key.ExpiresAt
	row.key.UpdatedAt = r.store.now()

	updated := row.key
	return &updated, nil
}

// Delete removes a key permanently.
func (r *APIKeyRepository) Delete(ctx context.Context, id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.apiKeys[id]; !ok {
		return errs.NewNotFound("API key not found")
	}
	delete(r.store.apiKeys, id)
	return nil
}

// RecordUsage adds batched usage counts.
func (r *APIKeyRepository) RecordUsage(ctx context.Context, id int64, requests int64, lastUsed time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row, ok := r.store.apiKeys[id]
	if !ok {
		// The key may have been deleted since the middleware batched the
		// counts; usage for it is simply dropped.
		return nil
	}
	row.key.RequestCount += requests
	if row.key.LastUsedAt == nil || lastUsed.After(*row.key.LastUsedAt) {
		at := lastUsed
		row.key.LastUsedAt = &at
	}
	return nil
}
