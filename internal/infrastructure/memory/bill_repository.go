// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

type billRow struct {
	bill model.Bill
}

// BillRepository implements port.BillRepository on the in-memory store.
type BillRepository struct {
	store *Store
}

// NewBillRepository creates a bill repository over the store.
func NewBillRepository(store *Store) *BillRepository {
	return &BillRepository{store: store}
}

func billKeyString(key model.BillKey) string {
	return key.Jurisdiction + "|" + key.NaturalID()
}

// billContent strips server-assigned fields so identical re-upserts compare
// equal: the surrogate ID, both timestamps, and the fetch/enrich stamps,
// which move on every run without the content changing.
func billContent(b model.Bill) model.Bill {
	b.ID = 0
	b.CreatedAt = time.Time{}
	b.UpdatedAt = time.Time{}
	b.LastFetchedAt = nil
	b.LastEnrichedAt = nil
	return b
}

// GetByNaturalKey returns the bill for the key.
func (r *BillRepository) GetByNaturalKey(ctx context.Context, key model.BillKey) (*model.Bill, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.bills[billKeyString(key)]
	if !ok {
		return nil, errs.NewNotFound("bill not found: " + key.String())
	}
	bill := row.bill
	return &bill, nil
}

// UpsertMany inserts or updates bills keyed by natural identifier.
func (r *BillRepository) UpsertMany(ctx context.Context, bills []model.Bill) (model.UpsertResult, error) {
	if len(bills) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result model.UpsertResult
	now := r.store.now()

	for _, bill := range bills {
		key := billKeyString(bill.Key)
		existing, ok := r.store.bills[key]
		if !ok {
			bill.ID = r.store.nextSurrogate()
			bill.CreatedAt = now
			bill.UpdatedAt = now
			r.store.bills[key] = &billRow{bill: bill}
			result.Created++
			continue
		}

		if reflect.DeepEqual(billContent(existing.bill), billContent(bill)) {
			// Unchanged content: nothing is rewritten, updated_at stands.
			result.Unchanged++
			continue
		}

		bill.ID = existing.bill.ID
		bill.CreatedAt = existing.bill.CreatedAt
		bill.UpdatedAt = now
		existing.bill = bill
		result.Updated++
	}

	return result, nil
}

func billMatches(b model.Bill, filter model.BillFilter) bool {
	if filter.Jurisdiction != "" && b.Key.Jurisdiction != filter.Jurisdiction {
		return false
	}
	if filter.Parliament != nil && b.Key.Parliament != *filter.Parliament {
		return false
	}
	if filter.Session != nil && b.Key.Session != *filter.Session {
		return false
	}
	if filter.Status != nil && b.Status != *filter.Status {
		return false
	}
	if filter.Tag != nil {
		found := false
		for _, tag := range b.SubjectTags {
			if strings.EqualFold(tag, *filter.Tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.SponsorID != nil && (b.SponsorPoliticianID == nil || *b.SponsorPoliticianID != *filter.SponsorID) {
		return false
	}
	for _, excluded := range filter.ExcludeIDs {
		if b.ID == excluded {
			return false
		}
	}
	return true
}

func (r *BillRepository) filtered(filter model.BillFilter) []model.Bill {
	var out []model.Bill
	for _, row := range r.store.bills {
		if billMatches(row.bill, filter) {
			out = append(out, row.bill)
		}
	}
	return out
}

// GetByFilter lists bills sorted by introduced date descending, natural key
// ascending as tiebreak.
func (r *BillRepository) GetByFilter(ctx context.Context, filter model.BillFilter, page paging.Params) ([]model.Bill, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	matched := r.filtered(filter)

	asc := filter.Order == "asc"
	less := func(i, j int) bool {
		var before bool
		var equal bool
		switch filter.Sort {
		case "updated_at":
			before = matched[i].UpdatedAt.After(matched[j].UpdatedAt)
			equal = matched[i].UpdatedAt.Equal(matched[j].UpdatedAt)
		case "number":
			before = matched[i].Key.Number > matched[j].Key.Number
			equal = matched[i].Key.Number == matched[j].Key.Number
		default:
			di, dj := dateOrZero(matched[i].IntroducedDate), dateOrZero(matched[j].IntroducedDate)
			before = di.After(dj)
			equal = di.Equal(dj)
		}
		if equal {
			return matched[i].Key.NaturalID() < matched[j].Key.NaturalID()
		}
		if asc {
			return !before
		}
		return before
	}
	sort.Slice(matched, less)

	return window(matched, page), len(matched), nil
}

// GetByIDs returns the bills for the given internal IDs, introduced date
// descending.
func (r *BillRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Bill, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var out []model.Bill
	for _, row := range r.store.bills {
		if idSet[row.bill.ID] {
			out = append(out, row.bill)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := dateOrZero(out[i].IntroducedDate), dateOrZero(out[j].IntroducedDate)
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return out[i].Key.NaturalID() < out[j].Key.NaturalID()
	})
	return out, nil
}

// LatestUpdatedAt returns MAX(updated_at) as unix seconds for the scope.
func (r *BillRepository) LatestUpdatedAt(ctx context.Context, filter model.BillFilter) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var latest int64
	for _, b := range r.filtered(filter) {
		if ts := b.UpdatedAt.Unix(); ts > latest {
			latest = ts
		}
	}
	return latest, nil
}

// SearchByContent scores bills by term frequency over title, short title, and
// summary, blending cosine similarity when embeddings are present on both
// sides.
func (r *BillRepository) SearchByContent(ctx context.Context, query string, queryEmbedding []float32, filter model.BillFilter, page paging.Params) ([]model.BillSearchHit, int, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, 0, errs.NewValidation("search query must not be empty")
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var hits []model.BillSearchHit
	maxKeyword := 0.0
	for _, bill := range r.filtered(filter) {
		text := billSearchText(bill)
		score := keywordScore(text, terms)
		if score == 0 {
			continue
		}
		if score > maxKeyword {
			maxKeyword = score
		}
		hits = append(hits, model.BillSearchHit{
			Bill:         bill,
			KeywordScore: score,
			Snippet:      model.Snippet(text, query, 60),
		})
	}

	for i := range hits {
		if maxKeyword > 0 {
			hits[i].KeywordScore /= maxKeyword
		}
		hasEmbedding := len(queryEmbedding) > 0 && len(hits[i].Bill.Embedding) > 0
		if hasEmbedding {
			hits[i].SimilarityScore = cosine(queryEmbedding, hits[i].Bill.Embedding)
		}
		hits[i].Score = model.HybridScore(hits[i].KeywordScore, hits[i].SimilarityScore, hasEmbedding)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Bill.Key.NaturalID() < hits[j].Bill.Key.NaturalID()
	})

	return window(hits, page), len(hits), nil
}

func billSearchText(b model.Bill) string {
	var parts []string
	for _, p := range []*string{b.Title.EN, b.Title.FR, b.ShortTitle.EN, b.ShortTitle.FR, b.Summary} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	return strings.Join(parts, " ")
}

func keywordScore(text string, terms []string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	var matches int
	for _, w := range words {
		for _, term := range terms {
			if strings.Contains(w, term) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(words))
}

func cosine(a []float32, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// window applies limit/offset to a sorted slice.
func window[T any](items []T, page paging.Params) []T {
	if page.Offset >= len(items) || page.Limit == 0 {
		return []T{}
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}
