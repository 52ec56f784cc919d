// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// VoteRepository provides access to persisted votes and their ballots.
type VoteRepository interface {
	// GetByNaturalKey returns the vote for the key, or a NotFound error.
	GetByNaturalKey(ctx context.Context, key model.VoteKey) (*model.Vote, error)

	// GetByFilter lists votes sorted by vote date descending, natural key
	// ascending as tiebreak, and returns the filtered total.
	GetByFilter(ctx context.Context, filter model.VoteFilter, page paging.Params) ([]model.Vote, int, error)

	// UpsertMany atomically inserts or updates a batch of votes keyed by
	// natural identifier. Bill references resolve to existing bills or null.
	UpsertMany(ctx context.Context, votes []model.Vote) (model.UpsertResult, error)

	// UpsertRecords replaces/creates a vote's individual ballots in one
	// transaction. Records are insert-only from the ingestion path.
	UpsertRecords(ctx context.Context, voteNaturalID string, records []model.VoteRecord) (model.UpsertResult, error)

	// GetRecords lists a vote's ballots, optionally filtered by position,
	// sorted by politician ID ascending.
	GetRecords(ctx context.Context, voteNaturalID string, position *model.BallotPosition, page paging.Params) ([]model.VoteRecord, int, error)
}
