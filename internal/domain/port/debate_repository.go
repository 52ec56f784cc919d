// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// DebateRepository provides access to persisted debates and speeches.
type DebateRepository interface {
	// GetByNaturalKey returns the debate for the key, or a NotFound error.
	GetByNaturalKey(ctx context.Context, key model.DebateKey) (*model.Debate, error)

	// GetByFilter lists debates sorted by date descending, natural key
	// ascending as tiebreak, and returns the filtered total.
	GetByFilter(ctx context.Context, filter model.DebateFilter, page paging.Params) ([]model.Debate, int, error)

	// UpsertMany atomically inserts or updates a batch keyed by natural
	// identifier.
	UpsertMany(ctx context.Context, debates []model.Debate) (model.UpsertResult, error)

	// UpsertSpeeches inserts or overwrites a debate's speeches in one
	// transaction; speeches are re-synced wholesale with their debate.
	// Speaker references resolve to existing politicians or null.
	UpsertSpeeches(ctx context.Context, debateNaturalID string, speeches []model.Speech) (model.UpsertResult, error)

	// GetSpeeches lists a debate's speeches sorted by sequence ascending.
	GetSpeeches(ctx context.Context, filter model.SpeechFilter, page paging.Params) ([]model.Speech, int, error)

	// SearchByContent runs full-text search over topic and speech text.
	SearchByContent(ctx context.Context, query string, jurisdiction string, page paging.Params) ([]model.SpeechSearchHit, int, error)
}
