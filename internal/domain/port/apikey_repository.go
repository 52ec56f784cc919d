// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
)

// APIKeyRepository provides access to stored API keys. Only hashes are ever
// persisted or queried.
type APIKeyRepository interface {
	// GetByHash returns the key record whose SHA-256 hash matches, or a
	// NotFound error.
	GetByHash(ctx context.Context, keyHash string) (*model.APIKey, error)

	// Create stores a new key record (hash already computed by the caller).
	Create(ctx context.Context, key model.APIKey) (*model.APIKey, error)

	// List returns every key, newest first.
	List(ctx context.Context) ([]model.APIKey, error)

	// Update persists mutable fields (name, active, limit, expiry).
	Update(ctx context.Context, key model.APIKey) (*model.APIKey, error)

	// Delete removes a key permanently.
	Delete(ctx context.Context, id int64) error

	// RecordUsage adds usage counts observed since the last flush; the
	// middleware batches these.
	RecordUsage(ctx context.Context, id int64, requests int64, lastUsed time.Time) error
}
