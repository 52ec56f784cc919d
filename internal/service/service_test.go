// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/internal/infrastructure/memory"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// fakeBillSource serves a fixed batch.
type fakeBillSource struct {
	batch *model.Batch[model.Bill]
	err   error
}

func (f *fakeBillSource) FetchBills(ctx context.Context, page port.FetchPage, window port.FetchWindow) (*model.Batch[model.Bill], error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.batch, nil
}

// fakeEnrichment serves per-key enrichments and errors.
type fakeEnrichment struct {
	byKey map[string]*model.BillEnrichment
	errs  map[string]error
}

func (f *fakeEnrichment) FetchBillEnrichment(ctx context.Context, key model.BillKey) (*model.BillEnrichment, error) {
	if err, ok := f.errs[key.NaturalID()]; ok {
		return nil, err
	}
	if enrichment, ok := f.byKey[key.NaturalID()]; ok {
		return enrichment, nil
	}
	return nil, errs.NewNotFound("no enrichment page")
}

func billFixture(number string) model.Bill {
	introduced := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	return model.Bill{
		Key:            model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: number},
		Title:          model.Bilingual{EN: model.StringPtr("Bill " + number)},
		IntroducedDate: &introduced,
		SourcePrimary:  true,
	}
}

func TestBillIngestMergesAndPersists(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bills := memory.NewBillRepository(store)
	fetchLogs := memory.NewFetchLogRepository(store)

	source := &fakeBillSource{batch: &model.Batch[model.Bill]{
		Records: []model.Bill{billFixture("C-11")},
		Total:   1,
	}}
	enrichment := &fakeEnrichment{byKey: map[string]*model.BillEnrichment{
		"44-1-C-11": {
			Key:         model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-11"},
			SubjectTags: []string{"broadcasting"},
			FetchedAt:   time.Now().UTC(),
		},
	}}

	ingestor := NewBillIngestor(
		WithBillSource(source),
		WithBillEnrichmentSource(enrichment),
		WithBillRepository(bills),
		WithBillFetchLogs(fetchLogs),
		WithBillFanOut(5),
	)

	result, err := ingestor.IngestPage(ctx, port.FetchPage{Limit: 50}, port.FetchWindow{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	stored, err := bills.GetByNaturalKey(ctx, billFixture("C-11").Key)
	require.NoError(t, err)
	assert.Equal(t, "Bill C-11", *stored.Title.EN)
	assert.Equal(t, []string{"broadcasting"}, stored.SubjectTags)
	assert.True(t, stored.SourcePrimary)
	assert.True(t, stored.SourceEnrichment)
	assert.NotNil(t, stored.LastEnrichedAt)

	// Running the identical pipeline again is a no-op.
	again, err := ingestor.IngestPage(ctx, port.FetchPage{Limit: 50}, port.FetchWindow{})
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Zero(t, again.Updated)

	// Primary and enrichment each logged per run.
	logs, _, err := fetchLogs.GetByFilter(ctx, model.FetchLogFilter{}, paging.Params{Limit: 50})
	require.NoError(t, err)
	assert.Len(t, logs, 4)
}

func TestBillIngestPartialEnrichment(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bills := memory.NewBillRepository(store)
	fetchLogs := memory.NewFetchLogRepository(store)

	var records []model.Bill
	enrichErrs := map[string]error{}
	for i := 1; i <= 50; i++ {
		records = append(records, billFixture(fmt.Sprintf("C-%d", i)))
	}
	for i := 1; i <= 3; i++ {
		enrichErrs[fmt.Sprintf("44-1-C-%d", i)] = errs.NewValidation("enrichment parse failed")
	}

	ingestor := NewBillIngestor(
		WithBillSource(&fakeBillSource{batch: &model.Batch[model.Bill]{Records: records, Total: 50}}),
		WithBillEnrichmentSource(&fakeEnrichment{errs: enrichErrs}),
		WithBillRepository(bills),
		WithBillFetchLogs(fetchLogs),
	)

	_, err := ingestor.IngestPage(ctx, port.FetchPage{Limit: 50}, port.FetchWindow{})
	require.NoError(t, err)

	primarySource := "openparliament.bills"
	primaryLogs, _, err := fetchLogs.GetByFilter(ctx,
		model.FetchLogFilter{Source: &primarySource}, paging.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, primaryLogs, 1)
	assert.Equal(t, model.FetchSuccess, primaryLogs[0].Status)
	assert.Equal(t, 50, primaryLogs[0].RecordsAttempted)
	assert.Equal(t, 50, primaryLogs[0].RecordsSucceeded)
	assert.Zero(t, primaryLogs[0].RecordsFailed)

	enrichSource := "legisinfo.bills"
	enrichLogs, _, err := fetchLogs.GetByFilter(ctx,
		model.FetchLogFilter{Source: &enrichSource}, paging.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, enrichLogs, 1)
	assert.Equal(t, model.FetchPartial, enrichLogs[0].Status)
	assert.Equal(t, 50, enrichLogs[0].RecordsAttempted)
	assert.Equal(t, 47, enrichLogs[0].RecordsSucceeded)
	assert.Equal(t, 3, enrichLogs[0].RecordsFailed)
	assert.NotEmpty(t, enrichLogs[0].ErrorSummary.Samples)
}

func TestBillIngestSourceFailureLogsFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	fetchLogs := memory.NewFetchLogRepository(store)

	ingestor := NewBillIngestor(
		WithBillSource(&fakeBillSource{err: errs.NewServiceUnavailable("catalogue down")}),
		WithBillRepository(memory.NewBillRepository(store)),
		WithBillFetchLogs(fetchLogs),
	)

	_, err := ingestor.IngestPage(ctx, port.FetchPage{Limit: 50}, port.FetchWindow{})
	require.Error(t, err)

	logs, _, err := fetchLogs.GetByFilter(ctx, model.FetchLogFilter{}, paging.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.FetchFailure, logs[0].Status)
}

// fakeVoteSource serves votes and per-vote ballots.
type fakeVoteSource struct {
	votes   *model.Batch[model.Vote]
	ballots map[string]*model.Batch[model.VoteRecord]
	errs    map[string]error
}

func (f *fakeVoteSource) FetchVotes(ctx context.Context, page port.FetchPage, window port.FetchWindow) (*model.Batch[model.Vote], error) {
	return f.votes, nil
}

func (f *fakeVoteSource) FetchVoteRecords(ctx context.Context, key model.VoteKey) (*model.Batch[model.VoteRecord], error) {
	if err, ok := f.errs[key.NaturalID()]; ok {
		return nil, err
	}
	if batch, ok := f.ballots[key.NaturalID()]; ok {
		return batch, nil
	}
	return &model.Batch[model.VoteRecord]{}, nil
}

func TestVoteIngestFanOut(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	votes := memory.NewVoteRepository(store)
	fetchLogs := memory.NewFetchLogRepository(store)

	voteBatch := &model.Batch[model.Vote]{}
	ballots := map[string]*model.Batch[model.VoteRecord]{}
	for i := 1; i <= 10; i++ {
		vote := model.Vote{
			Key:     model.VoteKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 300 + i},
			Date:    time.Date(2024, 3, i, 0, 0, 0, 0, time.UTC),
			Chamber: "House",
			Result:  model.VotePassed,
			Yeas:    2,
		}
		voteBatch.Records = append(voteBatch.Records, vote)
		ballots[vote.Key.NaturalID()] = &model.Batch[model.VoteRecord]{
			Records: []model.VoteRecord{
				{PoliticianID: "a", Position: model.BallotYea},
				{PoliticianID: "b", Position: model.BallotYea},
			},
		}
	}

	ingestor := NewVoteIngestor(
		WithVoteSource(&fakeVoteSource{votes: voteBatch, ballots: ballots}),
		WithVoteRepository(votes),
		WithVoteFetchLogs(fetchLogs),
		WithVoteFanOut(5),
	)

	result, err := ingestor.IngestPage(ctx, port.FetchPage{Limit: 10}, port.FetchWindow{})
	require.NoError(t, err)
	assert.Equal(t, 10, result.Created)

	// Every vote's ballots landed.
	for i := 1; i <= 10; i++ {
		records, total, err := votes.GetRecords(ctx,
			fmt.Sprintf("44-1-%d", 300+i), nil, paging.Params{Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, records, 2)
	}

	ballotSource := "openparliament.ballots"
	logs, _, err := fetchLogs.GetByFilter(ctx,
		model.FetchLogFilter{Source: &ballotSource}, paging.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.FetchSuccess, logs[0].Status)
	assert.Equal(t, 10, logs[0].RecordsSucceeded)
}

func TestVoteIngestTallyMismatchIsLoggedNotFatal(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	votes := memory.NewVoteRepository(store)
	fetchLogs := memory.NewFetchLogRepository(store)

	vote := model.Vote{
		Key:     model.VoteKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 300},
		Date:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Chamber: "House",
		Result:  model.VotePassed,
		Yeas:    177,
	}

	ingestor := NewVoteIngestor(
		WithVoteSource(&fakeVoteSource{
			votes: &model.Batch[model.Vote]{Records: []model.Vote{vote}},
			ballots: map[string]*model.Batch[model.VoteRecord]{
				"44-1-300": {Records: []model.VoteRecord{
					{PoliticianID: "a", Position: model.BallotYea},
				}},
			},
		}),
		WithVoteRepository(votes),
		WithVoteFetchLogs(fetchLogs),
	)

	_, err := ingestor.IngestPage(ctx, port.FetchPage{Limit: 10}, port.FetchWindow{})
	require.NoError(t, err)

	// Ballots persisted despite the mismatch; the mismatch shows up in the
	// ballot fetch log's error summary.
	_, total, err := votes.GetRecords(ctx, "44-1-300", nil, paging.Params{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	ballotSource := "openparliament.ballots"
	logs, _, err := fetchLogs.GetByFilter(ctx,
		model.FetchLogFilter{Source: &ballotSource}, paging.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotEmpty(t, logs[0].ErrorSummary.Samples)
	assert.Contains(t, logs[0].ErrorSummary.Samples[0].Message, "tally mismatch")
}

func TestAPIKeyServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	service := NewAPIKeyService(
		WithAPIKeyRepository(memory.NewAPIKeyRepository(store)),
		WithAPIKeyLimiter(ratelimit.NewRegistry()),
	)

	rawKey, created, err := service.Create(ctx, "ci", 3, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rawKey)
	assert.True(t, created.Active)

	// The raw key authenticates until its bucket drains.
	for i := 0; i < 3; i++ {
		_, decision, err := service.Authenticate(ctx, rawKey)
		require.NoError(t, err)
		assert.Equal(t, 3, decision.Limit)
	}
	_, decision, err := service.Authenticate(ctx, rawKey)
	require.Error(t, err)
	var limited errs.RateLimited
	assert.ErrorAs(t, err, &limited)
	assert.False(t, decision.Allowed)

	// Unknown and deactivated keys are unauthorized.
	_, _, err = service.Authenticate(ctx, "pk_wrong")
	var unauthorized errs.Unauthorized
	assert.ErrorAs(t, err, &unauthorized)

	_, err = service.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	_, _, err = service.Authenticate(ctx, rawKey)
	assert.ErrorAs(t, err, &unauthorized)

	// Usage counters land after a flush.
	service.FlushUsage(ctx)
	keys, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, int64(3), keys[0].RequestCount)
}

func TestPreferenceServiceIgnoreFlow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bills := memory.NewBillRepository(store)
	service := NewPreferenceService(
		WithPreferenceRepository(memory.NewPreferenceRepository(store)),
		WithPreferenceBillRepository(bills),
	)

	_, err := bills.UpsertMany(ctx, []model.Bill{billFixture("C-7")})
	require.NoError(t, err)

	device := "abcdefabcdefabcdefabcdefabcdef12"

	require.NoError(t, service.IgnoreBill(ctx, device, "ca-federal", "44-1-C-7"))
	require.NoError(t, service.IgnoreBill(ctx, device, "ca-federal", "44-1-C-7"))

	ignored, err := service.ListIgnored(ctx, device)
	require.NoError(t, err)
	require.Len(t, ignored, 1)
	assert.Equal(t, "C-7", ignored[0].Key.Number)

	assert.Error(t, service.IgnoreBill(ctx, "short", "ca-federal", "44-1-C-7"))
	var notFound errs.NotFound
	assert.ErrorAs(t, service.IgnoreBill(ctx, device, "ca-federal", "44-1-C-404"), &notFound)

	require.NoError(t, service.UnignoreBill(ctx, device, "ca-federal", "44-1-C-7"))
	ids, err := service.IgnoredIDs(ctx, device)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFeedPersonalizationSubtractsIgnoredGUIDs(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bills := memory.NewBillRepository(store)
	votes := memory.NewVoteRepository(store)
	debates := memory.NewDebateRepository(store)
	committees := memory.NewCommitteeRepository(store)

	_, err := bills.UpsertMany(ctx, []model.Bill{billFixture("C-7"), billFixture("C-8")})
	require.NoError(t, err)

	ignored, err := bills.GetByNaturalKey(ctx,
		model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-7"})
	require.NoError(t, err)

	feeds := NewFeedService(
		WithFeedBillRepository(bills),
		WithFeedVoteRepository(votes),
		WithFeedDebateRepository(debates),
		WithFeedCommitteeRepository(committees),
	)

	public, err := feeds.AllEntries(ctx, "ca-federal", nil)
	require.NoError(t, err)
	personalized, err := feeds.AllEntries(ctx, "ca-federal", []int64{ignored.ID})
	require.NoError(t, err)

	publicGUIDs := make(map[string]bool)
	for _, entry := range public {
		publicGUIDs[entry.GUID] = true
	}

	// The personalized GUID set is the public set minus the ignored bill's
	// events.
	for _, entry := range personalized {
		assert.True(t, publicGUIDs[entry.GUID])
		assert.NotContains(t, entry.GUID, ":44-1-C-7:")
	}
	assert.Len(t, personalized, len(public)-1)

	// GUIDs are stable across rebuilds.
	rebuilt, err := feeds.AllEntries(ctx, "ca-federal", nil)
	require.NoError(t, err)
	require.Len(t, rebuilt, len(public))
	for i := range public {
		assert.Equal(t, public[i].GUID, rebuilt[i].GUID)
	}
}

func TestSearchServiceCachesResults(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	bills := memory.NewBillRepository(store)

	bill := billFixture("C-11")
	bill.Summary = model.StringPtr("An Act respecting broadcasting")
	_, err := bills.UpsertMany(ctx, []model.Bill{bill})
	require.NoError(t, err)

	cache := memory.NewCache()
	search := NewSearchService(
		WithSearchBillRepository(bills),
		WithSearchDebateRepository(memory.NewDebateRepository(store)),
		WithSearchCache(cache),
	)

	hits, total, err := search.SearchBills(ctx, "ca-federal", "broadcasting", paging.Params{Limit: 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, hits, 1)

	// A new matching bill does not appear until the cache entry expires.
	second := billFixture("C-12")
	second.Summary = model.StringPtr("Another broadcasting bill")
	_, err = bills.UpsertMany(ctx, []model.Bill{second})
	require.NoError(t, err)

	_, total, err = search.SearchBills(ctx, "ca-federal", "broadcasting", paging.Params{Limit: 20}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err2 := search.Search(ctx, "ca-federal", "", "bills", paging.Params{}, nil)
	assert.Error(t, err2)
	_, err2 = search.Search(ctx, "ca-federal", "q", "unknown", paging.Params{}, nil)
	assert.Error(t, err2)
}

func TestIngestOutcomeErrorAggregation(t *testing.T) {
	outcome := IngestOutcome{
		Source:    "test",
		Attempted: 5,
		Succeeded: 3,
		Failed:    2,
		Errors: []error{
			errors.New("parse error"),
			errors.New("parse error"),
		},
	}
	store := memory.NewStore()
	entry := outcome.Record(context.Background(), memory.NewFetchLogRepository(store), time.Now())
	assert.Equal(t, model.FetchPartial, entry.Status)
	require.Len(t, entry.ErrorSummary.Samples, 1)
	assert.Equal(t, 2, entry.ErrorSummary.Samples[0].Count)
}
