// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/concurrent"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// BillIngestor orchestrates catalogue fetch, site enrichment, merge, and
// persistence for bills.
type BillIngestor interface {
	// IngestPage runs one page of the bill pipeline and reports how many
	// records landed. Two fetch logs are written: one for the primary fetch,
	// one for the enrichment pass.
	IngestPage(ctx context.Context, page port.FetchPage, window port.FetchWindow) (model.UpsertResult, error)
}

// billIngestorOption configures the orchestrator.
type billIngestorOption func(*billIngestor)

// WithBillSource sets the catalogue adapter.
func WithBillSource(source port.BillSource) billIngestorOption {
	return func(s *billIngestor) {
		s.source = source
	}
}

// WithBillEnrichmentSource sets the enrichment adapter.
func WithBillEnrichmentSource(enrichment port.EnrichmentSource) billIngestorOption {
	return func(s *billIngestor) {
		s.enrichment = enrichment
	}
}

// WithBillRepository sets the bill repository.
func WithBillRepository(repo port.BillRepository) billIngestorOption {
	return func(s *billIngestor) {
		s.bills = repo
	}
}

// WithBillFetchLogs sets the fetch-log repository.
func WithBillFetchLogs(fetchLogs port.FetchLogRepository) billIngestorOption {
	return func(s *billIngestor) {
		s.fetchLogs = fetchLogs
	}
}

// WithBillFanOut bounds concurrent enrichment fetches.
func WithBillFanOut(workers int) billIngestorOption {
	return func(s *billIngestor) {
		s.pool = concurrent.NewWorkerPool(workers)
	}
}

type billIngestor struct {
	source     port.BillSource
	enrichment port.EnrichmentSource
	bills      port.BillRepository
	fetchLogs  port.FetchLogRepository
	pool       *concurrent.WorkerPool
}

// NewBillIngestor creates the orchestrator using the option pattern.
func NewBillIngestor(opts ...billIngestorOption) BillIngestor {
	s := &billIngestor{
		pool: concurrent.NewWorkerPool(DefaultFanOut),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPage fetches one catalogue page, enriches each bill concurrently,
// merges, and upserts the batch.
func (s *billIngestor) IngestPage(ctx context.Context, page port.FetchPage, window port.FetchWindow) (model.UpsertResult, error) {
	startedAt := time.Now()
	params := map[string]any{
		"limit":  page.Limit,
		"offset": page.Offset,
	}
	if !window.Since.IsZero() {
		params["since"] = window.Since.Format("2006-01-02")
	}

	batch, err := s.source.FetchBills(ctx, page, window)
	if err != nil {
		IngestOutcome{
			Source: "openparliament.bills",
			Errors: []error{err},
			Params: params,
		}.Record(ctx, s.fetchLogs, startedAt)
		return model.UpsertResult{}, err
	}

	primary := IngestOutcome{
		Source:    "openparliament.bills",
		Attempted: len(batch.Records) + len(batch.Errors),
		Failed:    len(batch.Errors),
		Params:    params,
	}
	for _, recordErr := range batch.Errors {
		primary.Errors = append(primary.Errors, recordErr)
	}

	// Enrichment pass, fanned out under the bounded pool. Missing pages and
	// enrichment failures never block the primary persist.
	enrichmentStarted := time.Now()
	enrichments := make([]*model.BillEnrichment, len(batch.Records))
	var enrichMu sync.Mutex
	var enrichErrs []error

	if s.enrichment != nil && len(batch.Records) > 0 {
		jobs := make([]func() error, len(batch.Records))
		for i, bill := range batch.Records {
			jobs[i] = func() error {
				enrichment, err := s.enrichment.FetchBillEnrichment(ctx, bill.Key)
				if err != nil {
					var notFound errs.NotFound
					if !errors.As(err, &notFound) {
						enrichMu.Lock()
						enrichErrs = append(enrichErrs, model.RecordError{
							NaturalID: bill.Key.NaturalID(),
							Err:       err,
						})
						enrichMu.Unlock()
					}
					return nil
				}
				enrichments[i] = enrichment
				return nil
			}
		}
		// RunCollect keeps every enrichment attempt alive; one bad page must
		// not cancel its siblings.
		for _, jobErr := range s.pool.RunCollect(ctx, jobs...) {
			if jobErr != nil {
				enrichMu.Lock()
				enrichErrs = append(enrichErrs, jobErr)
				enrichMu.Unlock()
			}
		}
	}

	merged := make([]model.Bill, len(batch.Records))
	for i, bill := range batch.Records {
		merged[i] = model.MergeBill(bill, enrichments[i])
	}

	var total model.UpsertResult
	var persistErr error
	persistFailed := 0
	for _, slice := range sliceBatches(merged) {
		result, err := s.bills.UpsertMany(ctx, slice)
		if err != nil {
			persistErr = err
			primary.Errors = append(primary.Errors, err)
			persistFailed += len(slice)
			continue
		}
		total.Add(result)
	}
	primary.Failed += persistFailed
	primary.Succeeded = len(merged) - persistFailed
	primary.Record(ctx, s.fetchLogs, startedAt)

	if s.enrichment != nil && len(batch.Records) > 0 {
		enriched := 0
		for _, e := range enrichments {
			if e != nil {
				enriched++
			}
		}
		IngestOutcome{
			Source:    "legisinfo.bills",
			Attempted: len(batch.Records),
			Succeeded: len(batch.Records) - len(enrichErrs),
			Failed:    len(enrichErrs),
			Errors:    enrichErrs,
			Params:    params,
		}.Record(ctx, s.fetchLogs, enrichmentStarted)

		slog.DebugContext(ctx, "bill enrichment pass finished",
			"enriched", enriched,
			"failed", len(enrichErrs),
		)
	}

	if persistErr != nil {
		return total, persistErr
	}
	return total, nil
}

// BillPageSize is the page size the scheduled flows use.
const BillPageSize = constants.DefaultFetchLimit
