// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// BillRepository provides access to persisted bills.
type BillRepository interface {
	// GetByNaturalKey returns the bill for the key, or a NotFound error.
	GetByNaturalKey(ctx context.Context, key model.BillKey) (*model.Bill, error)

	// GetByFilter lists bills sorted by introduced date descending, natural
	// key ascending as tiebreak, and returns the filtered total.
	GetByFilter(ctx context.Context, filter model.BillFilter, page paging.Params) ([]model.Bill, int, error)

	// UpsertMany atomically inserts or updates a batch of at most 500 bills
	// keyed by natural identifier. Re-upserting identical content is a no-op
	// that does not advance updated_at.
	UpsertMany(ctx context.Context, bills []model.Bill) (model.UpsertResult, error)

	// SearchByContent runs full-text search over title, short title, and
	// summary; when queryEmbedding is non-nil rows carrying embeddings are
	// scored hybrid (0.7 keyword + 0.3 similarity).
	SearchByContent(ctx context.Context, query string, queryEmbedding []float32, filter model.BillFilter, page paging.Params) ([]model.BillSearchHit, int, error)

	// GetByIDs returns the bills for the given internal IDs, introduced date
	// descending. Unknown IDs are skipped.
	GetByIDs(ctx context.Context, ids []int64) ([]model.Bill, error)

	// LatestUpdatedAt returns MAX(updated_at) for the filter scope; feed
	// caching keys on it.
	LatestUpdatedAt(ctx context.Context, filter model.BillFilter) (int64, error)
}
