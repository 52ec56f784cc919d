// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package service holds the orchestrators between adapters, the merger, and
// the repositories. One ingestor exists per ingestion domain; each run ends
// with a fetch-log entry carrying aggregated counts and a compressed error
// summary.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
)

// DefaultFanOut bounds concurrent detail fetches within one ingest run.
const DefaultFanOut = 5

// maxErrorSamples caps the unique messages kept in a fetch log.
const maxErrorSamples = 10

// IngestOutcome aggregates one ingest run for its fetch-log entry.
type IngestOutcome struct {
	Source    string
	Attempted int
	Succeeded int
	Failed    int
	Errors    []error
	Params    map[string]any
}

// Record classifies the outcome and appends it to the fetch log. Logging
// failures are reported but never fail the ingest itself.
func (o IngestOutcome) Record(ctx context.Context, fetchLogs port.FetchLogRepository, startedAt time.Time) model.FetchLog {
	entry := model.FetchLog{
		Source:           o.Source,
		Status:           model.ClassifyFetch(o.Succeeded, o.Failed),
		RecordsAttempted: o.Attempted,
		RecordsSucceeded: o.Succeeded,
		RecordsFailed:    o.Failed,
		Duration:         time.Since(startedAt),
		Parameters:       o.Params,
		ErrorSummary:     model.SummarizeErrors(o.Errors, maxErrorSamples),
	}

	if _, err := fetchLogs.Append(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to append fetch log",
			"source", o.Source,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "ingest finished",
		"source", o.Source,
		"status", string(entry.Status),
		"attempted", o.Attempted,
		"succeeded", o.Succeeded,
		"failed", o.Failed,
		"duration", entry.Duration.String(),
	)
	return entry
}

// sliceBatches cuts records into repository-sized upsert batches.
func sliceBatches[T any](records []T) [][]T {
	if len(records) == 0 {
		return nil
	}
	var batches [][]T
	for start := 0; start < len(records); start += constants.UpsertBatchSize {
		end := start + constants.UpsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
