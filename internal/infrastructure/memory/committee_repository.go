// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

type committeeRow struct {
	committee model.Committee
}

type meetingRow struct {
	meeting model.CommitteeMeeting
}

// CommitteeRepository implements port.CommitteeRepository on the in-memory
// store.
type CommitteeRepository struct {
	store *Store
}

// NewCommitteeRepository creates a committee repository over the store.
func NewCommitteeRepository(store *Store) *CommitteeRepository {
	return &CommitteeRepository{store: store}
}

func committeeKeyString(key model.CommitteeKey) string {
	return key.Jurisdiction + "|" + key.NaturalID()
}

func committeeContent(c model.Committee) model.Committee {
	c.ID = 0
	c.CreatedAt = time.Time{}
	c.UpdatedAt = time.Time{}
	return c
}

func meetingContent(m model.CommitteeMeeting) model.CommitteeMeeting {
	m.ID = 0
	m.CreatedAt = time.Time{}
	m.UpdatedAt = time.Time{}
	return m
}

// GetByNaturalKey returns the committee for the key.
func (r *CommitteeRepository) GetByNaturalKey(ctx context.Context, key model.CommitteeKey) (*model.Committee, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.committees[committeeKeyString(key)]
	if !ok {
		return nil, errs.NewNotFound("committee not found: " + key.NaturalID())
	}
	c := row.committee
	return &c, nil
}

// UpsertMany inserts or updates committees keyed by natural identifier.
func (r *CommitteeRepository) UpsertMany(ctx context.Context, committees []model.Committee) (model.UpsertResult, error) {
	if len(committees) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, committee := range committees {
		// A parent reference must point at a stored committee or stay null.
		if committee.ParentSlug != nil {
			parentKey := model.CommitteeKey{
				Jurisdiction: committee.Key.Jurisdiction,
				Parliament:   committee.Key.Parliament,
				Session:      committee.Key.Session,
				Slug:         *committee.ParentSlug,
			}
			if _, ok := r.store.committees[committeeKeyString(parentKey)]; !ok {
				committee.ParentSlug = nil
			}
		}

		key := committeeKeyString(committee.Key)
		existing, ok := r.store.committees[key]
		if !ok {
			committee.ID = r.store.nextSurrogate()
			committee.CreatedAt = now
			committee.UpdatedAt = now
			r.store.committees[key] = &committeeRow{committee: committee}
			result.Created++
			continue
		}

		if reflect.DeepEqual(committeeContent(existing.committee), committeeContent(committee)) {
			result.Unchanged++
			continue
		}

		committee.ID = existing.committee.ID
		committee.CreatedAt = existing.committee.CreatedAt
		committee.UpdatedAt = now
		existing.committee = committee
		result.Updated++
	}

	return result, nil
}

// GetByFilter lists committees sorted by slug ascending.
func (r *CommitteeRepository) GetByFilter(ctx context.Context, filter model.CommitteeFilter, page paging.Params) ([]model.Committee, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.Committee
	for _, row := range r.store.committees {
		c := row.committee
		if filter.Jurisdiction != "" && c.Key.Jurisdiction != filter.Jurisdiction {
			continue
		}
		if filter.Parliament != nil && c.Key.Parliament != *filter.Parliament {
			continue
		}
		if filter.Session != nil && c.Key.Session != *filter.Session {
			continue
		}
		if filter.Chamber != nil && c.Chamber != *filter.Chamber {
			continue
		}
		matched = append(matched, c)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Key.NaturalID() < matched[j].Key.NaturalID()
	})

	return window(matched, page), len(matched), nil
}

// UpsertMeetings inserts or overwrites meetings for their natural keys.
func (r *CommitteeRepository) UpsertMeetings(ctx context.Context, meetings []model.CommitteeMeeting) (model.UpsertResult, error) {
	if len(meetings) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, meeting := range meetings {
		key := fmt.Sprintf("%s|%d|%d|%d", meeting.CommitteeSlug, meeting.Parliament, meeting.Session, meeting.Number)
		existing, ok := r.store.meetings[key]
		if !ok {
			meeting.ID = r.store.nextSurrogate()
			meeting.CreatedAt = now
			meeting.UpdatedAt = now
			r.store.meetings[key] = &meetingRow{meeting: meeting}
			result.Created++
			continue
		}

		if reflect.DeepEqual(meetingContent(existing.meeting), meetingContent(meeting)) {
			result.Unchanged++
			continue
		}

		meeting.ID = existing.meeting.ID
		meeting.CreatedAt = existing.meeting.CreatedAt
		meeting.UpdatedAt = now
		existing.meeting = meeting
		result.Updated++
	}

	return result, nil
}

// GetMeetings lists a committee's meetings sorted by date descending.
func (r *CommitteeRepository) GetMeetings(ctx context.Context, key model.CommitteeKey, page paging.Params) ([]model.CommitteeMeeting, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.CommitteeMeeting
	for _, row := range r.store.meetings {
		m := row.meeting
		if m.CommitteeSlug != key.Slug || m.Parliament != key.Parliament || m.Session != key.Session {
			continue
		}
		matched = append(matched, m)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].Number > matched[j].Number
	})

	return window(matched, page), len(matched), nil
}
