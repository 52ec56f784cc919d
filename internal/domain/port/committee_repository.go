// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// CommitteeRepository provides access to persisted committees and meetings.
type CommitteeRepository interface {
	// GetByNaturalKey returns the committee for the key, or a NotFound error.
	GetByNaturalKey(ctx context.Context, key model.CommitteeKey) (*model.Committee, error)

	// GetByFilter lists committees sorted by slug ascending and returns the
	// filtered total.
	GetByFilter(ctx context.Context, filter model.CommitteeFilter, page paging.Params) ([]model.Committee, int, error)

	// UpsertMany atomically inserts or updates a batch keyed by natural
	// identifier. Parent references resolve to existing committees or null.
	UpsertMany(ctx context.Context, committees []model.Committee) (model.UpsertResult, error)

	// UpsertMeetings inserts or overwrites meetings for their natural keys in
	// one transaction; meetings are re-synced wholesale.
	UpsertMeetings(ctx context.Context, meetings []model.CommitteeMeeting) (model.UpsertResult, error)

	// GetMeetings lists a committee's meetings sorted by date descending.
	GetMeetings(ctx context.Context, key model.CommitteeKey, page paging.Params) ([]model.CommitteeMeeting, int, error)
}
