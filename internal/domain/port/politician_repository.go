// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// PoliticianRepository provides access to persisted politicians.
type PoliticianRepository interface {
	// GetByNaturalKey returns the politician for the key, or a NotFound error.
	GetByNaturalKey(ctx context.Context, key model.PoliticianKey) (*model.Politician, error)

	// GetByFilter lists politicians sorted by name ascending and returns the
	// filtered total.
	GetByFilter(ctx context.Context, filter model.PoliticianFilter, page paging.Params) ([]model.Politician, int, error)

	// UpsertMany atomically inserts or updates a batch keyed by natural
	// identifier.
	UpsertMany(ctx context.Context, politicians []model.Politician) (model.UpsertResult, error)
}
