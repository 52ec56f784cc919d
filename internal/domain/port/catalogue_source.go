// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
)

// FetchPage is the pagination window passed to catalogue fetches.
type FetchPage struct {
	Limit  int
	Offset int
}

// FetchWindow narrows a catalogue fetch to records changed since a point in
// time; zero means fetch everything.
type FetchWindow struct {
	Since time.Time
}

// BillSource fetches bills from the catalogue.
type BillSource interface {
	FetchBills(ctx context.Context, page FetchPage, window FetchWindow) (*model.Batch[model.Bill], error)
}

// PoliticianSource fetches politicians from the catalogue.
type PoliticianSource interface {
	FetchPoliticians(ctx context.Context, page FetchPage) (*model.Batch[model.Politician], error)
}

// VoteSource fetches votes and per-vote ballots from the catalogue.
type VoteSource interface {
	FetchVotes(ctx context.Context, page FetchPage, window FetchWindow) (*model.Batch[model.Vote], error)
	FetchVoteRecords(ctx context.Context, key model.VoteKey) (*model.Batch[model.VoteRecord], error)
}

// CommitteeSource fetches committees and per-committee meetings.
type CommitteeSource interface {
	FetchCommittees(ctx context.Context, page FetchPage) (*model.Batch[model.Committee], error)
	FetchMeetings(ctx context.Context, key model.CommitteeKey, page FetchPage) (*model.Batch[model.CommitteeMeeting], error)
}

// DebateSource fetches debates and per-debate speeches.
type DebateSource interface {
	FetchDebates(ctx context.Context, page FetchPage, window FetchWindow) (*model.Batch[model.Debate], error)
	FetchSpeeches(ctx context.Context, key model.DebateKey, page FetchPage) (*model.Batch[model.Speech], error)
}

// CatalogueSource is the full catalogue adapter surface.
type CatalogueSource interface {
	BillSource
	PoliticianSource
	VoteSource
	CommitteeSource
	DebateSource
}

// EnrichmentSource scrapes the authoritative site for fields the catalogue
// lacks.
type EnrichmentSource interface {
	FetchBillEnrichment(ctx context.Context, key model.BillKey) (*model.BillEnrichment, error)
}
