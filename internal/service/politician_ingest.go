// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
)

// PoliticianIngestor orchestrates politician ingestion.
type PoliticianIngestor interface {
	IngestPage(ctx context.Context, page port.FetchPage) (model.UpsertResult, error)
}

type politicianIngestorOption func(*politicianIngestor)

// WithPoliticianSource sets the catalogue adapter.
func WithPoliticianSource(source port.PoliticianSource) politicianIngestorOption {
	return func(s *politicianIngestor) {
		s.source = source
	}
}

// WithPoliticianRepository sets the politician repository.
func WithPoliticianRepository(repo port.PoliticianRepository) politicianIngestorOption {
	return func(s *politicianIngestor) {
		s.politicians = repo
	}
}

// WithPoliticianFetchLogs sets the fetch-log repository.
func WithPoliticianFetchLogs(fetchLogs port.FetchLogRepository) politicianIngestorOption {
	return func(s *politicianIngestor) {
		s.fetchLogs = fetchLogs
	}
}

type politicianIngestor struct {
	source      port.PoliticianSource
	politicians port.PoliticianRepository
	fetchLogs   port.FetchLogRepository
}

// NewPoliticianIngestor creates the orchestrator using the option pattern.
func NewPoliticianIngestor(opts ...politicianIngestorOption) PoliticianIngestor {
	s := &politicianIngestor{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPage runs the politician pipeline for one page.
func (s *politicianIngestor) IngestPage(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
	startedAt := time.Now()
	params := map[string]any{
		"limit":  page.Limit,
		"offset": page.Offset,
	}

	batch, err := s.source.FetchPoliticians(ctx, page)
	if err != nil {
		IngestOutcome{
			Source: "openparliament.politicians",
			Errors: []error{err},
			Params: params,
		}.Record(ctx, s.fetchLogs, startedAt)
		return model.UpsertResult{}, err
	}

	outcome := IngestOutcome{
		Source:    "openparliament.politicians",
		Attempted: len(batch.Records) + len(batch.Errors),
		Failed:    len(batch.Errors),
		Params:    params,
	}
	for _, recordErr := range batch.Errors {
		outcome.Errors = append(outcome.Errors, recordErr)
	}

	var total model.UpsertResult
	persistFailed := 0
	for _, slice := range sliceBatches(batch.Records) {
		result, err := s.politicians.UpsertMany(ctx, slice)
		if err != nil {
			outcome.Errors = append(outcome.Errors, err)
			persistFailed += len(slice)
			continue
		}
		total.Add(result)
	}
	outcome.Failed += persistFailed
	outcome.Succeeded = len(batch.Records) - persistFailed
	outcome.Record(ctx, s.fetchLogs, startedAt)

	return total, nil
}
