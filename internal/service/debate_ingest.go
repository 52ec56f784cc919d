// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"sync"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/concurrent"
	"github.com/truecivic/parliament-service/pkg/constants"
)

// DebateIngestor orchestrates debate and speech ingestion.
type DebateIngestor interface {
	IngestPage(ctx context.Context, page port.FetchPage, window port.FetchWindow) (model.UpsertResult, error)
}

type debateIngestorOption func(*debateIngestor)

// WithDebateSource sets the catalogue adapter.
func WithDebateSource(source port.DebateSource) debateIngestorOption {
	return func(s *debateIngestor) {
		s.source = source
	}
}

// WithDebateRepository sets the debate repository.
func WithDebateRepository(repo port.DebateRepository) debateIngestorOption {
	return func(s *debateIngestor) {
		s.debates = repo
	}
}

// WithDebateFetchLogs sets the fetch-log repository.
func WithDebateFetchLogs(fetchLogs port.FetchLogRepository) debateIngestorOption {
	return func(s *debateIngestor) {
		s.fetchLogs = fetchLogs
	}
}

// WithDebateFanOut bounds concurrent speech fetches.
func WithDebateFanOut(workers int) debateIngestorOption {
	return func(s *debateIngestor) {
		s.pool = concurrent.NewWorkerPool(workers)
	}
}

type debateIngestor struct {
	source    port.DebateSource
	debates   port.DebateRepository
	fetchLogs port.FetchLogRepository
	pool      *concurrent.WorkerPool
}

// NewDebateIngestor creates the orchestrator using the option pattern.
func NewDebateIngestor(opts ...debateIngestorOption) DebateIngestor {
	s := &debateIngestor{
		pool: concurrent.NewWorkerPool(DefaultFanOut),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPage runs the debate pipeline for one page, re-syncing each debate's
// speeches wholesale.
func (s *debateIngestor) IngestPage(ctx context.Context, page port.FetchPage, window port.FetchWindow) (model.UpsertResult, error) {
	startedAt := time.Now()
	params := map[string]any{
		"limit":  page.Limit,
		"offset": page.Offset,
	}

	batch, err := s.source.FetchDebates(ctx, page, window)
	if err != nil {
		IngestOutcome{
			Source: "openparliament.debates",
			Errors: []error{err},
			Params: params,
		}.Record(ctx, s.fetchLogs, startedAt)
		return model.UpsertResult{}, err
	}

	outcome := IngestOutcome{
		Source:    "openparliament.debates",
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
		result, err := s.debates.UpsertMany(ctx, slice)
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

	// Speeches per debate, bounded fan-out, paginating each debate until an
	// empty page.
	speechesStarted := time.Now()
	speeches := IngestOutcome{
		Source: "openparliament.speeches",
		Params: params,
	}
	var mu sync.Mutex

	jobs := make([]func() error, 0, len(batch.Records))
	for _, debate := range batch.Records {
		jobs = append(jobs, func() error {
			offset := 0
			failed := false
			for {
				speechBatch, err := s.source.FetchSpeeches(ctx, debate.Key, port.FetchPage{
					Limit:  constants.MaxFetchLimit,
					Offset: offset,
				})
				if err != nil {
					mu.Lock()
					speeches.Errors = append(speeches.Errors, model.RecordError{
						NaturalID: debate.Key.NaturalID(),
						Err:       err,
					})
					mu.Unlock()
					failed = true
					break
				}

				mu.Lock()
				for _, recordErr := range speechBatch.Errors {
					speeches.Errors = append(speeches.Errors, recordErr)
				}
				mu.Unlock()

				if len(speechBatch.Records) == 0 {
					break
				}

				for _, slice := range sliceBatches(speechBatch.Records) {
					if _, err := s.debates.UpsertSpeeches(ctx, debate.Key.NaturalID(), slice); err != nil {
						mu.Lock()
						speeches.Errors = append(speeches.Errors, err)
						mu.Unlock()
						failed = true
						break
					}
				}
				if failed {
					break
				}

				if speechBatch.Total >= 0 && offset+len(speechBatch.Records) >= speechBatch.Total {
					break
				}
				offset += len(speechBatch.Records)
			}

			mu.Lock()
			speeches.Attempted++
			if failed {
				speeches.Failed++
			} else {
				speeches.Succeeded++
			}
			mu.Unlock()
			return nil
		})
	}
	for _, jobErr := range s.pool.RunCollect(ctx, jobs...) {
		if jobErr != nil {
			mu.Lock()
			speeches.Errors = append(speeches.Errors, jobErr)
			mu.Unlock()
		}
	}

	if len(jobs) > 0 {
		speeches.Record(ctx, s.fetchLogs, speechesStarted)
	}

	return total, nil
}
