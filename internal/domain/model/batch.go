// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"time"
)

// Provenance is the fetch stub every adapter attaches to a batch.
type Provenance struct {
	SourceURL   string    `json:"source_url"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentHash string    `json:"content_hash"`
}

// RecordError is a terminal per-record failure inside a batch. The batch
// itself is not aborted by these.
type RecordError struct {
	NaturalID string `json:"natural_id"`
	Err       error  `json:"-"`
}

func (e RecordError) Error() string {
	if e.NaturalID == "" {
		return e.Err.Error()
	}
	return e.NaturalID + ": " + e.Err.Error()
}

// Unwrap exposes the cause.
func (e RecordError) Unwrap() error {
	return e.Err
}

// Batch is one page of decoded records plus its per-record failures and
// provenance.
type Batch[T any] struct {
	Records    []T           `json:"records"`
	Errors     []RecordError `json:"-"`
	Provenance Provenance    `json:"provenance"`

	// Total is the upstream total when the source reports one; -1 when
	// pagination must continue until an empty page.
	Total int `json:"total"`
}

// UpsertResult reports how a batch landed in the store. Unchanged counts
// rows whose content matched and were left untouched.
type UpsertResult struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Add accumulates another batch's result.
func (r *UpsertResult) Add(other UpsertResult) {
	r.Created += other.Created
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
}
