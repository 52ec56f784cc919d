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

type feedTokenRow struct {
	token model.FeedToken
}

// PreferenceRepository implements port.PreferenceRepository on the in-memory
// store.
type PreferenceRepository struct {
	store *Store
}

// NewPreferenceRepository creates a preference repository over the store.
func NewPreferenceRepository(store *Store) *PreferenceRepository {
	return &PreferenceRepository{store: store}
}

// AddIgnore records (device, bill) idempotently.
func (r *PreferenceRepository) AddIgnore(ctx context.Context, deviceID string, billID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	set, ok := r.store.ignored[deviceID]
	if !ok {
		set = make(map[int64]time.Time)
		r.store.ignored[deviceID] = set
	}
	if _, exists := set[billID]; !exists {
		set[billID] = r.store.now()
	}
	return nil
}

// RemoveIgnore deletes the pair.
func (r *PreferenceRepository) RemoveIgnore(ctx context.Context, deviceID string, billID int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if set, ok := r.store.ignored[deviceID]; ok {
		delete(set, billID)
	}
	return nil
}

// ListIgnored returns the device's ignored bill IDs, ascending.
func (r *PreferenceRepository) ListIgnored(ctx context.Context, deviceID string) ([]int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	set := r.store.ignored[deviceID]
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CreateToken stores a new feed token.
func (r *PreferenceRepository) CreateToken(ctx context.Context, token model.FeedToken) (*model.FeedToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.feedTokens[token.Token]; exists {
		return nil, errs.NewConflict("feed token already exists")
	}

	token.CreatedAt = r.store.now()
	r.store.feedTokens[token.Token] = &feedTokenRow{token: token}

	stored := token
	return &stored, nil
}

// ResolveToken maps a token to its record, bumping access stats.
func (r *PreferenceRepository) ResolveToken(ctx context.Context, token string) (*model.FeedToken, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	row, ok := r.store.feedTokens[token]
	if !ok {
		return nil, errs.NewNotFound("unknown feed token")
	}

	now := r.store.now()
	row.token.LastAccessedAt = &now
	row.token.AccessCount++

	resolved := row.token
	return &resolved, nil
}

// RevokeToken deletes the mapping.
func (r *PreferenceRepository) RevokeToken(ctx context.Context, token string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.feedTokens[token]; !ok {
		return errs.NewNotFound("unknown feed token")
	}
	delete(r.store.feedTokens, token)
	return nil
}
