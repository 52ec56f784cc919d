// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

type fetchLogRow struct {
	entry model.FetchLog
}

// FetchLogRepository implements port.FetchLogRepository on the in-memory
// store.
type FetchLogRepository struct {
	store *Store
}

// NewFetchLogRepository creates a fetch-log repository over the store.
func NewFetchLogRepository(store *Store) *FetchLogRepository {
	return &FetchLogRepository{store: store}
}

// Append persists one entry.
func (r *FetchLogRepository) Append(ctx context.Context, entry model.FetchLog) (*model.FetchLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	entry.ID = r.store.nextSurrogate()
	entry.CreatedAt = r.store.now()
	r.store.fetchLogs = append(r.store.fetchLogs, fetchLogRow{entry: entry})

	stored := entry
	return &stored, nil
}

// GetByFilter lists entries newest first.
func (r *FetchLogRepository) GetByFilter(ctx context.Context, filter model.FetchLogFilter, page paging.Params) ([]model.FetchLog, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.FetchLog
	// fetchLogs is append-only; walk backwards for newest-first.
	for i := len(r.store.fetchLogs) - 1; i >= 0; i-- {
		entry := r.store.fetchLogs[i].entry
		if filter.Source != nil && entry.Source != *filter.Source {
			continue
		}
		if filter.Status != nil && entry.Status != *filter.Status {
			continue
		}
		matched = append(matched, entry)
	}

	return window(matched, page), len(matched), nil
}
