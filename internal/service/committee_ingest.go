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
)

// CommitteeIngestor orchestrates committee and meeting ingestion.
type CommitteeIngestor interface {
	IngestPage(ctx context.Context, page port.FetchPage) (model.UpsertResult, error)
}

type committeeIngestorOption func(*committeeIngestor)

// WithCommitteeSource sets the catalogue adapter.
func WithCommitteeSource(source port.CommitteeSource) committeeIngestorOption {
	return func(s *committeeIngestor) {
		s.source = source
	}
}

// WithCommitteeRepository sets the committee repository.
func WithCommitteeRepository(repo port.CommitteeRepository) committeeIngestorOption {
	return func(s *committeeIngestor) {
		s.committees = repo
	}
}

// WithCommitteeFetchLogs sets the fetch-log repository.
func WithCommitteeFetchLogs(fetchLogs port.FetchLogRepository) committeeIngestorOption {
	return func(s *committeeIngestor) {
		s.fetchLogs = fetchLogs
	}
}

// WithCommitteeFanOut bounds concurrent meeting fetches.
func WithCommitteeFanOut(workers int) committeeIngestorOption {
	return func(s *committeeIngestor) {
		s.pool = concurrent.NewWorkerPool(workers)
	}
}

type committeeIngestor struct {
	source     port.CommitteeSource
	committees port.CommitteeRepository
	fetchLogs  port.FetchLogRepository
	pool       *concurrent.WorkerPool
}

// NewCommitteeIngestor creates the orchestrator using the option pattern.
func NewCommitteeIngestor(opts ...committeeIngestorOption) CommitteeIngestor {
	s := &committeeIngestor{
		pool: concurrent.NewWorkerPool(DefaultFanOut),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPage runs the committee pipeline for one page: committees first so
// parent references can resolve, then meetings fanned out per committee.
func (s *committeeIngestor) IngestPage(ctx context.Context, page port.FetchPage) (model.UpsertResult, error) {
	startedAt := time.Now()
	params := map[string]any{
		"limit":  page.Limit,
		"offset": page.Offset,
	}

	batch, err := s.source.FetchCommittees(ctx, page)
	if err != nil {
		IngestOutcome{
			Source: "openparliament.committees",
			Errors: []error{err},
			Params: params,
		}.Record(ctx, s.fetchLogs, startedAt)
		return model.UpsertResult{}, err
	}

	outcome := IngestOutcome{
		Source:    "openparliament.committees",
		Attempted: len(batch.Records) + len(batch.Errors),
		Failed:    len(batch.Errors),
		Params:    params,
	}
	for _, recordErr := range batch.Errors {
		outcome.Errors = append(outcome.Errors, recordErr)
	}

	// Parents before children so parent references resolve on first pass.
	ordered := make([]model.Committee, 0, len(batch.Records))
	var children []model.Committee
	for _, committee := range batch.Records {
		if committee.ParentSlug == nil {
			ordered = append(ordered, committee)
		} else {
			children = append(children, committee)
		}
	}
	ordered = append(ordered, children...)

	var total model.UpsertResult
	persistFailed := 0
	for _, slice := range sliceBatches(ordered) {
		result, err := s.committees.UpsertMany(ctx, slice)
		if err != nil {
			outcome.Errors = append(outcome.Errors, err)
			persistFailed += len(slice)
			continue
		}
		total.Add(result)
	}
	outcome.Failed += persistFailed
	outcome.Succeeded = len(ordered) - persistFailed
	outcome.Record(ctx, s.fetchLogs, startedAt)

	// Meetings per committee, bounded fan-out.
	meetingsStarted := time.Now()
	meetings := IngestOutcome{
		Source: "openparliament.committee_meetings",
		Params: params,
	}
	var mu sync.Mutex

	jobs := make([]func() error, 0, len(batch.Records))
	for _, committee := range batch.Records {
		jobs = append(jobs, func() error {
			meetingBatch, err := s.source.FetchMeetings(ctx, committee.Key, port.FetchPage{Limit: BillPageSize})
			if err != nil {
				mu.Lock()
				meetings.Attempted++
				meetings.Failed++
				meetings.Errors = append(meetings.Errors, model.RecordError{
					NaturalID: committee.Key.NaturalID(),
					Err:       err,
				})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			meetings.Attempted++
			for _, recordErr := range meetingBatch.Errors {
				meetings.Errors = append(meetings.Errors, recordErr)
			}
			mu.Unlock()

			for _, slice := range sliceBatches(meetingBatch.Records) {
				if _, err := s.committees.UpsertMeetings(ctx, slice); err != nil {
					mu.Lock()
					meetings.Failed++
					meetings.Errors = append(meetings.Errors, err)
					mu.Unlock()
					return nil
				}
			}

			mu.Lock()
			meetings.Succeeded++
			mu.Unlock()
			return nil
		})
	}
	for _, jobErr := range s.pool.RunCollect(ctx, jobs...) {
		if jobErr != nil {
			mu.Lock()
			meetings.Errors = append(meetings.Errors, jobErr)
			mu.Unlock()
		}
	}

	if len(jobs) > 0 {
		meetings.Record(ctx, s.fetchLogs, meetingsStarted)
	}

	return total, nil
}
