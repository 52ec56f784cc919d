// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

type debateRow struct {
	debate model.Debate
}

type speechRow struct {
	speech model.Speech
}

// DebateRepository implements port.DebateRepository on the in-memory store.
type DebateRepository struct {
	store *Store
}

// NewDebateRepository creates a debate repository over the store.
func NewDebateRepository(store *Store) *DebateRepository {
	return &DebateRepository{store: store}
}

func debateKeyString(key model.DebateKey) string {
	return key.Jurisdiction + "|" + key.NaturalID()
}

func debateContent(d model.Debate) model.Debate {
	d.ID = 0
	d.CreatedAt = time.Time{}
	d.UpdatedAt = time.Time{}
	return d
}

func speechContent(s model.Speech) model.Speech {
	s.ID = 0
	s.CreatedAt = time.Time{}
	s.UpdatedAt = time.Time{}
	return s
}

// GetByNaturalKey returns the debate for the key.
func (r *DebateRepository) GetByNaturalKey(ctx context.Context, key model.DebateKey) (*model.Debate, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.debates[debateKeyString(key)]
	if !ok {
		return nil, errs.NewNotFound("debate not found: " + key.NaturalID())
	}
	d := row.debate
	return &d, nil
}

// UpsertMany inserts or updates debates keyed by natural identifier.
func (r *DebateRepository) UpsertMany(ctx context.Context, debates []model.Debate) (model.UpsertResult, error) {
	if len(debates) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, debate := range debates {
		key := debateKeyString(debate.Key)
		existing, ok := r.store.debates[key]
		if !ok {
			debate.ID = r.store.nextSurrogate()
			debate.CreatedAt = now
			debate.UpdatedAt = now
			r.store.debates[key] = &debateRow{debate: debate}
			result.Created++
			continue
		}

		if reflect.DeepEqual(debateContent(existing.debate), debateContent(debate)) {
			result.Unchanged++
			continue
		}

		debate.ID = existing.debate.ID
		debate.CreatedAt = existing.debate.CreatedAt
		debate.UpdatedAt = now
		existing.debate = debate
		result.Updated++
	}

	return result, nil
}

// GetByFilter lists debates sorted by date descending, natural key ascending.
func (r *DebateRepository) GetByFilter(ctx context.Context, filter model.DebateFilter, page paging.Params) ([]model.Debate, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.Debate
	for _, row := range r.store.debates {
		d := row.debate
		if filter.Jurisdiction != "" && d.Key.Jurisdiction != filter.Jurisdiction {
			continue
		}
		if filter.Parliament != nil && d.Key.Parliament != *filter.Parliament {
			continue
		}
		if filter.Session != nil && d.Key.Session != *filter.Session {
			continue
		}
		matched = append(matched, d)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].Key.NaturalID() < matched[j].Key.NaturalID()
	})

	return window(matched, page), len(matched), nil
}

// UpsertSpeeches inserts or overwrites a debate's speeches keyed by
// (debate, sequence). Unresolvable speaker references become null.
func (r *DebateRepository) UpsertSpeeches(ctx context.Context, debateNaturalID string, speeches []model.Speech) (model.UpsertResult, error) {
	if len(speeches) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, speech := range speeches {
		speech.DebateNaturalID = debateNaturalID

		if speech.PoliticianID != nil {
			found := false
			for _, row := range r.store.politicians {
				if row.politician.Key.PoliticianID == *speech.PoliticianID {
					found = true
					break
				}
			}
			if !found {
				speech.PoliticianID = nil
			}
		}

		key := fmt.Sprintf("%s|%d", debateNaturalID, speech.Sequence)
		existing, ok := r.store.speeches[key]
		if !ok {
			speech.ID = r.store.nextSurrogate()
			speech.CreatedAt = now
			speech.UpdatedAt = now
			r.store.speeches[key] = &speechRow{speech: speech}
			result.Created++
			continue
		}

		if reflect.DeepEqual(speechContent(existing.speech), speechContent(speech)) {
			result.Unchanged++
			continue
		}

		speech.ID = existing.speech.ID
		speech.CreatedAt = existing.speech.CreatedAt
		speech.UpdatedAt = now
		existing.speech = speech
		result.Updated++
	}

	return result, nil
}

// GetSpeeches lists a debate's speeches sorted by sequence ascending.
func (r *DebateRepository) GetSpeeches(ctx context.Context, filter model.SpeechFilter, page paging.Params) ([]model.Speech, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matched []model.Speech
	for _, row := range r.store.speeches {
		s := row.speech
		if s.DebateNaturalID != filter.DebateNaturalID {
			continue
		}
		if filter.PoliticianID != nil && (s.PoliticianID == nil || *s.PoliticianID != *filter.PoliticianID) {
			continue
		}
		matched = append(matched, s)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Sequence < matched[j].Sequence
	})

	return window(matched, page), len(matched), nil
}

// SearchByContent scores speeches by term frequency over topic and text.
func (r *DebateRepository) SearchByContent(ctx context.Context, query string, jurisdiction string, page paging.Params) ([]model.SpeechSearchHit, int, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, 0, errs.NewValidation("search query must not be empty")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	debatesByID := make(map[string]model.Debate)
	for _, row := range r.store.debates {
		if jurisdiction == "" || row.debate.Key.Jurisdiction == jurisdiction {
			debatesByID[row.debate.Key.NaturalID()] = row.debate
		}
	}

	var hits []model.SpeechSearchHit
	for _, row := range r.store.speeches {
		s := row.speech
		debate, ok := debatesByID[s.DebateNaturalID]
		if !ok {
			continue
		}
		text := speechSearchText(debate, s)
		score := keywordScore(text, terms)
		if score == 0 {
			continue
		}
		hits = append(hits, model.SpeechSearchHit{
			Speech:  s,
			Score:   score,
			Snippet: model.Snippet(text, query, 60),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Speech.DebateNaturalID != hits[j].Speech.DebateNaturalID {
			return hits[i].Speech.DebateNaturalID < hits[j].Speech.DebateNaturalID
		}
		return hits[i].Speech.Sequence < hits[j].Speech.Sequence
	})

	return window(hits, page), len(hits), nil
}

func speechSearchText(d model.Debate, s model.Speech) string {
	var parts []string
	for _, p := range []*string{d.Topic.EN, d.Topic.FR, s.Text.EN, s.Text.FR} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, " ")
}
