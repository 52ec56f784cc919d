// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

type voteRow struct {
	vote model.Vote
}

type voteRecordRow struct {
	record model.VoteRecord
}

// VoteRepository implements port.VoteRepository on the in-memory store.
type VoteRepository struct {
	store *Store
}

// NewVoteRepository creates a vote repository over the store.
func NewVoteRepository(store *Store) *VoteRepository {
	return &VoteRepository{store: store}
}

func voteKeyString(key model.VoteKey) string {
	return key.Jurisdiction + "|" + key.NaturalID()
}

func voteContent(v model.Vote) model.Vote {
	v.ID = 0
	v.BillID = nil
	v.CreatedAt = time.Time{}
	v.UpdatedAt = time.Time{}
	return v
}

// GetByNaturalKey returns the vote for the key.
func (r *VoteRepository) GetByNaturalKey(ctx context.Context, key model.VoteKey) (*model.Vote, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.votes[voteKeyString(key)]
	if !ok {
		return nil, errs.NewNotFound("vote not found: " + key.String())
	}
	vote := row.vote
	return &vote, nil
}

// resolveBill maps a natural bill reference to its surrogate ID within the
// vote's parliament/session. Unresolvable references stay null; dangling IDs
// are never stored. Callers must hold at least the read lock.
func (r *VoteRepository) resolveBill(vote *model.Vote) {
	vote.BillID = nil
	if vote.BillNumber == nil {
		return
	}
	key := model.BillKey{
		Jurisdiction: vote.Key.Jurisdiction,
		Parliament:   vote.Key.Parliament,
		Session:      vote.Key.Session,
		Number:       *vote.BillNumber,
	}
	if row, ok := r.store.bills[billKeyString(key)]; ok {
		id := row.bill.ID
		vote.BillID = &id
	}
}

// UpsertMany inserts or updates votes keyed by natural identifier.
func (r *VoteRepository) UpsertMany(ctx context.Context, votes []model.Vote) (model.UpsertResult, error) {
	if len(votes) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, vote := range votes {
		r.resolveBill(&vote)

		key := voteKeyString(vote.Key)
		existing, ok := r.store.votes[key]
		if !ok {
			vote.ID = r.store.nextSurrogate()
			vote.CreatedAt = now
			vote.UpdatedAt = now
			r.store.votes[key] = &voteRow{vote: vote}
			result.Created++
			continue
		}

		if reflect.DeepEqual(voteContent(existing.vote), voteContent(vote)) {
			result.Unchanged++
			continue
		}

		vote.ID = existing.vote.ID
		vote.CreatedAt = existing.vote.CreatedAt
		vote.UpdatedAt = now
		existing.vote = vote
		result.Updated++
	}

	return result, nil
}

// GetByFilter lists votes sorted by date descending, natural key ascending.
func (r *VoteRepository) GetByFilter(ctx context.Context, filter model.VoteFilter, page paging.Params) ([]model.Vote, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.Vote
	for _, row := range r.store.votes {
		v := row.vote
		if filter.Jurisdiction != "" && v.Key.Jurisdiction != filter.Jurisdiction {
			continue
		}
		if filter.Parliament != nil && v.Key.Parliament != *filter.Parliament {
			continue
		}
		if filter.Session != nil && v.Key.Session != *filter.Session {
			continue
		}
		if filter.BillID != nil && (v.BillID == nil || *v.BillID != *filter.BillID) {
			continue
		}
		if filter.Result != nil && v.Result != *filter.Result {
			continue
		}
		matched = append(matched, v)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].Key.NaturalID() < matched[j].Key.NaturalID()
	})

	return window(matched, page), len(matched), nil
}

// UpsertRecords inserts a vote's ballots keyed by (vote, politician).
func (r *VoteRepository) UpsertRecords(ctx context.Context, voteNaturalID string, records []model.VoteRecord) (model.UpsertResult, error) {
	if len(records) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, record := range records {
		record.VoteNaturalID = voteNaturalID
		key := voteNaturalID + "|" + record.PoliticianID
		existing, ok := r.store.voteRecords[key]
		if !ok {
			record.ID = r.store.nextSurrogate()
			record.CreatedAt = now
			record.UpdatedAt = now
			r.store.voteRecords[key] = &voteRecordRow{record: record}
			result.Created++
			continue
		}

		if existing.record.Position == record.Position {
			result.Unchanged++
			continue
		}

		record.ID = existing.record.ID
		record.CreatedAt = existing.record.CreatedAt
		record.UpdatedAt = now
		existing.record = record
		result.Updated++
	}

	return result, nil
}

// GetRecords lists a vote's ballots sorted by politician ID ascending.
func (r *VoteRepository) GetRecords(ctx context.Context, voteNaturalID string, position *model.BallotPosition, page paging.Params) ([]model.VoteRecord, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.VoteRecord
	for _, row := range r.store.voteRecords {
		rec := row.record
		if rec.VoteNaturalID != voteNaturalID {
			continue
		}
		if position != nil && rec.Position != *position {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PoliticianID < matched[j].PoliticianID
	})

	return window(matched, page), len(matched), nil
}
