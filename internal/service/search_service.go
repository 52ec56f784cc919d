// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// searchCacheTTL bounds how long a result page is served from cache.
const searchCacheTTL = 5 * time.Minute

// SearchResult is the wire shape of a cross-entity search response.
type SearchResult struct {
	Bills    []model.BillSearchHit   `json:"bills,omitempty"`
	Speeches []model.SpeechSearchHit `json:"speeches,omitempty"`
	Total    int                     `json:"total"`
}

// SearchService runs keyword and hybrid search with result caching.
type SearchService interface {
	// SearchBills searches bills only; hybrid ranking applies when an
	// embedder is configured.
	SearchBills(ctx context.Context, jurisdiction, query string, page paging.Params, excludeBillIDs []int64) ([]model.BillSearchHit, int, error)

	// Search is the cross-entity endpoint; entityType is "bills", "debates",
	// or empty for both.
	Search(ctx context.Context, jurisdiction, query, entityType string, page paging.Params, excludeBillIDs []int64) (*SearchResult, error)
}

type searchServiceOption func(*searchService)

// WithSearchBillRepository sets the bill repository.
func WithSearchBillRepository(repo port.BillRepository) searchServiceOption {
	return func(s *searchService) {
		s.bills = repo
	}
}

// WithSearchDebateRepository sets the debate repository.
func WithSearchDebateRepository(repo port.DebateRepository) searchServiceOption {
	return func(s *searchService) {
		s.debates = repo
	}
}

// WithSearchCache sets the result cache.
func WithSearchCache(cache port.Cache) searchServiceOption {
	return func(s *searchService) {
		s.cache = cache
	}
}

// WithSearchEmbedder enables hybrid ranking.
func WithSearchEmbedder(embedder port.Embedder) searchServiceOption {
	return func(s *searchService) {
		s.embedder = embedder
	}
}

type searchService struct {
	bills    port.BillRepository
	debates  port.DebateRepository
	cache    port.Cache
	embedder port.Embedder
}

// NewSearchService creates the service using the option pattern.
func NewSearchService(opts ...searchServiceOption) SearchService {
	s := &searchService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errs.NewValidation("query parameter q is required")
	}
	if len(query) > 200 {
		return "", errs.NewValidation("query must be at most 200 characters")
	}
	return query, nil
}

// searchCacheKey hashes the normalized query tuple. Device-filtered searches are
// keyed separately so one device's ignore set never leaks into another's
// results.
func searchCacheKey(jurisdiction, query, entityType string, page paging.Params, excludeBillIDs []int64) string {
	payload, _ := json.Marshal(map[string]any{
		"jurisdiction": jurisdiction,
		"query":        strings.ToLower(strings.Join(strings.Fields(query), " ")),
		"type":         entityType,
		"limit":        page.Limit,
		"offset":       page.Offset,
		"exclude":      excludeBillIDs,
	})
	hash := sha256.Sum256(payload)
	return "search:" + hex.EncodeToString(hash[:])
}

func (s *searchService) queryEmbedding(ctx context.Context, query string) []float32 {
	if s.embedder == nil {
		return nil
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		slog.WarnContext(ctx, "query embedding failed, falling back to keyword-only",
			"error", err,
		)
		return nil
	}
	return vectors[0]
}

// SearchBills searches bills with caching.
func (s *searchService) SearchBills(ctx context.Context, jurisdiction, query string, page paging.Params, excludeBillIDs []int64) ([]model.BillSearchHit, int, error) {
	query, err := validateQuery(query)
	if err != nil {
		return nil, 0, err
	}
	clampSearchPage(&page)

	type cached struct {
		Hits  []model.BillSearchHit `json:"hits"`
		Total int                   `json:"total"`
	}

	key := searchCacheKey(jurisdiction, query, "bills", page, excludeBillIDs)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var entry cached
			if json.Unmarshal(raw, &entry) == nil {
				return entry.Hits, entry.Total, nil
			}
		}
	}

	hits, total, err := s.bills.SearchByContent(ctx, query, s.queryEmbedding(ctx, query),
		model.BillFilter{Jurisdiction: jurisdiction, ExcludeIDs: excludeBillIDs}, page)
	if err != nil {
		return nil, 0, err
	}

	if s.cache != nil {
		if raw, marshalErr := json.Marshal(cached{Hits: hits, Total: total}); marshalErr == nil {
			_ = s.cache.Set(ctx, key, raw, searchCacheTTL)
		}
	}
	return hits, total, nil
}

// Search runs the cross-entity endpoint.
func (s *searchService) Search(ctx context.Context, jurisdiction, query, entityType string, page paging.Params, excludeBillIDs []int64) (*SearchResult, error) {
	query, err := validateQuery(query)
	if err != nil {
		return nil, err
	}
	switch entityType {
	case "", "bills", "debates":
	default:
		return nil, errs.NewValidation(fmt.Sprintf("unknown search type %q", entityType))
	}
	clampSearchPage(&page)

	key := searchCacheKey(jurisdiction, query, entityType, page, excludeBillIDs)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var result SearchResult
			if json.Unmarshal(raw, &result) == nil {
				return &result, nil
			}
		}
	}

	result := &SearchResult{}
	if entityType == "" || entityType == "bills" {
		hits, total, err := s.bills.SearchByContent(ctx, query, s.queryEmbedding(ctx, query),
			model.BillFilter{Jurisdiction: jurisdiction, ExcludeIDs: excludeBillIDs}, page)
		if err != nil {
			return nil, err
		}
		result.Bills = hits
		result.Total += total
	}
	if entityType == "" || entityType == "debates" {
		hits, total, err := s.debates.SearchByContent(ctx, query, jurisdiction, page)
		if err != nil {
			return nil, err
		}
		result.Speeches = hits
		result.Total += total
	}

	if s.cache != nil {
		if raw, marshalErr := json.Marshal(result); marshalErr == nil {
			_ = s.cache.Set(ctx, key, raw, searchCacheTTL)
		}
	}
	return result, nil
}

func clampSearchPage(page *paging.Params) {
	if page.Limit <= 0 {
		page.Limit = constants.DefaultSearchLimit
	}
	if page.Limit > constants.MaxSearchLimit {
		page.Limit = constants.MaxSearchLimit
	}
}
