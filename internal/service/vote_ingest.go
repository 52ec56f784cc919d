// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/concurrent"
)

// VoteIngestor orchestrates vote and ballot ingestion.
type VoteIngestor interface {
	// IngestPage fetches one page of votes, persists them, then fans out to
	// fetch and persist each vote's ballots concurrently.
	IngestPage(ctx context.Context, page port.FetchPage, window port.FetchWindow) (model.UpsertResult, error)
}

type voteIngestorOption func(*voteIngestor)

// WithVoteSource sets the catalogue adapter.
func WithVoteSource(source port.VoteSource) voteIngestorOption {
	return func(s *voteIngestor) {
		s.source = source
	}
}

// WithVoteRepository sets the vote repository.
func WithVoteRepository(repo port.VoteRepository) voteIngestorOption {
	return func(s *voteIngestor) {
		s.votes = repo
	}
}

// WithVoteFetchLogs sets the fetch-log repository.
func WithVoteFetchLogs(fetchLogs port.FetchLogRepository) voteIngestorOption {
	return func(s *voteIngestor) {
		s.fetchLogs = fetchLogs
	}
}

// WithVoteFanOut bounds concurrent ballot fetches.
func WithVoteFanOut(workers int) voteIngestorOption {
	return func(s *voteIngestor) {
		s.pool = concurrent.NewWorkerPool(workers)
	}
}

type voteIngestor struct {
	source    port.VoteSource
	votes     port.VoteRepository
	fetchLogs port.FetchLogRepository
	pool      *concurrent.WorkerPool
}

// NewVoteIngestor creates the orchestrator using the option pattern.
func NewVoteIngestor(opts ...voteIngestorOption) VoteIngestor {
	s := &voteIngestor{
		pool: concurrent.NewWorkerPool(DefaultFanOut),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPage runs the vote pipeline for one page.
func (s *voteIngestor) IngestPage(ctx context.Context, page port.FetchPage, window port.FetchWindow) (model.UpsertResult, error) {
	startedAt := time.Now()
	params := map[string]any{
		"limit":  page.Limit,
		"offset": page.Offset,
	}

	batch, err := s.source.FetchVotes(ctx, page, window)
	if err != nil {
		IngestOutcome{
			Source: "openparliament.votes",
			Errors: []error{err},
			Params: params,
		}.Record(ctx, s.fetchLogs, startedAt)
		return model.UpsertResult{}, err
	}

	outcome := IngestOutcome{
		Source:    "openparliament.votes",
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
		result, err := s.votes.UpsertMany(ctx, slice)
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

	// Ballot fan-out: bounded concurrency, one transaction per vote's batch.
	ballotsStarted := time.Now()
	ballots := IngestOutcome{
		Source: "openparliament.ballots",
		Params: params,
	}
	var mu sync.Mutex

	jobs := make([]func() error, 0, len(batch.Records))
	for _, vote := range batch.Records {
		jobs = append(jobs, func() error {
			records, err := s.source.FetchVoteRecords(ctx, vote.Key)
			if err != nil {
				mu.Lock()
				ballots.Attempted++
				ballots.Failed++
				ballots.Errors = append(ballots.Errors, model.RecordError{
					NaturalID: vote.Key.NaturalID(),
					Err:       err,
				})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			ballots.Attempted++
			for _, recordErr := range records.Errors {
				ballots.Errors = append(ballots.Errors, recordErr)
			}
			mu.Unlock()

			// Tally reconciliation is loggable, never fatal: both numbers
			// stay visible and the ballots persist regardless.
			for _, mismatch := range model.ReconcileTallies(&vote, records.Records) {
				mu.Lock()
				ballots.Errors = append(ballots.Errors, model.RecordError{
					NaturalID: vote.Key.NaturalID(),
					Err:       tallyMismatchError{mismatch},
				})
				mu.Unlock()
				slog.WarnContext(ctx, "vote tally mismatch",
					"vote", vote.Key.NaturalID(),
					"detail", mismatch.String(),
				)
			}

			for _, slice := range sliceBatches(records.Records) {
				if _, err := s.votes.UpsertRecords(ctx, vote.Key.NaturalID(), slice); err != nil {
					mu.Lock()
					ballots.Failed++
					ballots.Errors = append(ballots.Errors, err)
					mu.Unlock()
					return nil
				}
			}

			mu.Lock()
			ballots.Succeeded++
			mu.Unlock()
			return nil
		})
	}
	for _, jobErr := range s.pool.RunCollect(ctx, jobs...) {
		if jobErr != nil {
			mu.Lock()
			ballots.Errors = append(ballots.Errors, jobErr)
			mu.Unlock()
		}
	}

	if len(jobs) > 0 {
		ballots.Record(ctx, s.fetchLogs, ballotsStarted)
	}

	return total, nil
}

// tallyMismatchError adapts a reconciliation mismatch into the error summary.
type tallyMismatchError struct {
	mismatch model.TallyMismatch
}

func (e tallyMismatchError) Error() string {
	return "tally mismatch: " + e.mismatch.String()
}
