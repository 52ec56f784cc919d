// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"bytes"
	"context"
	"reflect"
	"sort"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

type politicianRow struct {
	politician model.Politician
}

// PoliticianRepository implements port.PoliticianRepository on the in-memory
// store.
type PoliticianRepository struct {
	store *Store
}

// NewPoliticianRepository creates a politician repository over the store.
func NewPoliticianRepository(store *Store) *PoliticianRepository {
	return &PoliticianRepository{store: store}
}

func politicianKeyString(key model.PoliticianKey) string {
	return key.Jurisdiction + "|" + key.PoliticianID
}

func politicianContent(p model.Politician) model.Politician {
	p.ID = 0
	p.CreatedAt = time.Time{}
	p.UpdatedAt = time.Time{}
	return p
}

func politiciansEqual(a, b model.Politician) bool {
	ca, cb := politicianContent(a), politicianContent(b)
	// RawMessage compares by bytes, not structure; normalize nil vs empty.
	ma, mb := ca.Memberships, cb.Memberships
	ca.Memberships, cb.Memberships = nil, nil
	return reflect.DeepEqual(ca, cb) && bytes.Equal(ma, mb)
}

// GetByNaturalKey returns the politician for the key.
func (r *PoliticianRepository) GetByNaturalKey(ctx context.Context, key model.PoliticianKey) (*model.Politician, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.politicians[politicianKeyString(key)]
	if !ok {
		return nil, errs.NewNotFound("politician not found: " + key.PoliticianID)
	}
	p := row.politician
	return &p, nil
}

// UpsertMany inserts or updates politicians keyed by natural identifier.
func (r *PoliticianRepository) UpsertMany(ctx context.Context, politicians []model.Politician) (model.UpsertResult, error) {
	if len(politicians) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, p := range politicians {
		key := politicianKeyString(p.Key)
		existing, ok := r.store.politicians[key]
		if !ok {
			p.ID = r.store.nextSurrogate()
			p.CreatedAt = now
			p.UpdatedAt = now
			r.store.politicians[key] = &politicianRow{politician: p}
			result.Created++
			continue
		}

		if politiciansEqual(existing.politician, p) {
			result.Unchanged++
			continue
		}

		p.ID = existing.politician.ID
		p.CreatedAt = existing.politician.CreatedAt
		p.UpdatedAt = now
		existing.politician = p
		result.Updated++
	}

	return result, nil
}

// GetByFilter lists politicians sorted by name ascending.
func (r *PoliticianRepository) GetByFilter(ctx context.Context, filter model.PoliticianFilter, page paging.Params) ([]model.Politician, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.Politician
	for _, row := range r.store.politicians {
		p := row.politician
		if filter.Jurisdiction != "" && p.Key.Jurisdiction != filter.Jurisdiction {
			continue
		}
		if filter.Party != nil && (p.CurrentParty == nil || *p.CurrentParty != *filter.Party) {
			continue
		}
		if filter.Riding != nil && (p.CurrentRiding == nil || *p.CurrentRiding != *filter.Riding) {
			continue
		}
		if filter.CurrentOnly && p.CurrentRiding == nil {
			continue
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].Key.PoliticianID < matched[j].Key.PoliticianID
	})

	return window(matched, page), len(matched), nil
}
