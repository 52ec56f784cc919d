// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func sampleBill(number string) model.Bill {
	introduced := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	return model.Bill{
		Key:            model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: number},
		Title:          model.Bilingual{EN: model.StringPtr("Bill " + number)},
		IntroducedDate: &introduced,
		Status:         "introduced",
		SourcePrimary:  true,
	}
}

func TestBillUpsertIdempotence(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SetClock(fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	repo := NewBillRepository(store)

	bill := sampleBill("C-11")

	first, err := repo.UpsertMany(ctx, []model.Bill{bill})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)
	assert.Equal(t, 0, first.Updated)

	stored, err := repo.GetByNaturalKey(ctx, bill.Key)
	require.NoError(t, err)
	firstUpdatedAt := stored.UpdatedAt

	// Identical content again: a no-op, updated_at untouched even though the
	// clock has moved.
	second, err := repo.UpsertMany(ctx, []model.Bill{bill})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 0, second.Updated)

	stored, err = repo.GetByNaturalKey(ctx, bill.Key)
	require.NoError(t, err)
	assert.Equal(t, firstUpdatedAt, stored.UpdatedAt)

	// A changed field advances updated_at.
	bill.Status = "second-reading"
	third, err := repo.UpsertMany(ctx, []model.Bill{bill})
	require.NoError(t, err)
	assert.Equal(t, 1, third.Updated)

	stored, err = repo.GetByNaturalKey(ctx, bill.Key)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.After(firstUpdatedAt))
	assert.True(t, !stored.CreatedAt.After(stored.UpdatedAt))
}

func TestBillFetchTimestampDoesNotDirtyRow(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewBillRepository(store)

	bill := sampleBill("C-11")
	now := time.Now()
	bill.LastFetchedAt = &now

	_, err := repo.UpsertMany(ctx, []model.Bill{bill})
	require.NoError(t, err)

	later := now.Add(time.Hour)
	bill.LastFetchedAt = &later
	result, err := repo.UpsertMany(ctx, []model.Bill{bill})
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
}

func TestBillFilterExcludesIgnored(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewBillRepository(store)

	_, err := repo.UpsertMany(ctx, []model.Bill{sampleBill("C-1"), sampleBill("C-2"), sampleBill("C-3")})
	require.NoError(t, err)

	ignored, err := repo.GetByNaturalKey(ctx, model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-2"})
	require.NoError(t, err)

	bills, total, err := repo.GetByFilter(ctx,
		model.BillFilter{Jurisdiction: "ca-federal", ExcludeIDs: []int64{ignored.ID}},
		paging.Params{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, b := range bills {
		assert.NotEqual(t, ignored.ID, b.ID)
	}
}

func TestVoteBillResolution(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	billRepo := NewBillRepository(store)
	voteRepo := NewVoteRepository(store)

	_, err := billRepo.UpsertMany(ctx, []model.Bill{sampleBill("C-11")})
	require.NoError(t, err)

	vote := model.Vote{
		Key:        model.VoteKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 300},
		Date:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Chamber:    "House",
		Result:     model.VotePassed,
		Yeas:       177,
		Nays:       140,
		BillNumber: model.StringPtr("C-11"),
	}
	dangling := model.Vote{
		Key:        model.VoteKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 301},
		Date:       time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		Chamber:    "House",
		Result:     model.VoteDefeated,
		BillNumber: model.StringPtr("C-999"),
	}

	_, err = voteRepo.UpsertMany(ctx, []model.Vote{vote, dangling})
	require.NoError(t, err)

	resolved, err := voteRepo.GetByNaturalKey(ctx, vote.Key)
	require.NoError(t, err)
	require.NotNil(t, resolved.BillID)

	unresolved, err := voteRepo.GetByNaturalKey(ctx, dangling.Key)
	require.NoError(t, err)
	assert.Nil(t, unresolved.BillID)
	assert.Equal(t, "C-999", *unresolved.BillNumber)
}

func TestVoteRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewVoteRepository(store)

	records := []model.VoteRecord{
		{PoliticianID: "alice-a", Position: model.BallotYea},
		{PoliticianID: "bob-b", Position: model.BallotNay},
	}
	result, err := repo.UpsertRecords(ctx, "44-1-300", records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)

	// Re-sync with one position changed.
	records[1].Position = model.BallotPaired
	result, err = repo.UpsertRecords(ctx, "44-1-300", records)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Created)
	assert.Equal(t, 1, result.Updated)

	position := model.BallotPaired
	paired, total, err := repo.GetRecords(ctx, "44-1-300", &position, paging.Params{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "bob-b", paired[0].PoliticianID)
}

func TestSpeechSpeakerResolution(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	polRepo := NewPoliticianRepository(store)
	debRepo := NewDebateRepository(store)

	_, err := polRepo.UpsertMany(ctx, []model.Politician{{
		Key:  model.PoliticianKey{Jurisdiction: "ca-federal", PoliticianID: "alice-a"},
		Name: "Alice A",
	}})
	require.NoError(t, err)

	speeches := []model.Speech{
		{Sequence: 1, PoliticianID: model.StringPtr("alice-a"), SpeakerName: "Alice A"},
		{Sequence: 2, PoliticianID: model.StringPtr("ghost"), SpeakerName: "The Speaker"},
	}
	_, err = debRepo.UpsertSpeeches(ctx, "44-1-123", speeches)
	require.NoError(t, err)

	stored, total, err := debRepo.GetSpeeches(ctx, model.SpeechFilter{DebateNaturalID: "44-1-123"}, paging.Params{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.NotNil(t, stored[0].PoliticianID)
	assert.Nil(t, stored[1].PoliticianID)
	assert.Equal(t, "The Speaker", stored[1].SpeakerName)
}

func TestSearchKeywordAndHybrid(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewBillRepository(store)

	broadcast := sampleBill("C-11")
	broadcast.Summary = model.StringPtr("An Act respecting broadcasting and online streaming")
	broadcast.Embedding = []float32{1, 0, 0}

	fisheries := sampleBill("C-20")
	fisheries.Summary = model.StringPtr("An Act respecting fisheries")

	_, err := repo.UpsertMany(ctx, []model.Bill{broadcast, fisheries})
	require.NoError(t, err)

	hits, total, err := repo.SearchByContent(ctx, "broadcasting", nil,
		model.BillFilter{Jurisdiction: "ca-federal"}, paging.Params{Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "C-11", hits[0].Bill.Key.Number)
	assert.NotEmpty(t, hits[0].Snippet)
	// No query embedding: keyword-only, normalized to [0,1].
	assert.Equal(t, hits[0].KeywordScore, hits[0].Score)

	hits, _, err = repo.SearchByContent(ctx, "act", []float32{1, 0, 0},
		model.BillFilter{Jurisdiction: "ca-federal"}, paging.Params{Limit: 20})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		switch hit.Bill.Key.Number {
		case "C-11":
			// Embedded row blends 0.7 keyword + 0.3 similarity.
			assert.InDelta(t, 1.0, hit.SimilarityScore, 0.0001)
			assert.InDelta(t, model.HybridWeightKeyword*hit.KeywordScore+model.HybridWeightVector, hit.Score, 0.0001)
		case "C-20":
			// No embedding: keyword score stands alone.
			assert.Equal(t, hit.KeywordScore, hit.Score)
		}
	}
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewAPIKeyRepository(store)

	created, err := repo.Create(ctx, model.APIKey{
		Name:            "ci",
		KeyHash:         model.HashAPIKey("raw-key"),
		Active:          true,
		RequestsPerHour: 100,
	})
	require.NoError(t, err)

	_, err = repo.Create(ctx, model.APIKey{Name: "dup", KeyHash: model.HashAPIKey("raw-key")})
	var conflict errs.Conflict
	assert.ErrorAs(t, err, &conflict)

	found, err := repo.GetByHash(ctx, model.HashAPIKey("raw-key"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = repo.GetByHash(ctx, model.HashAPIKey("other"))
	var notFound errs.NotFound
	assert.ErrorAs(t, err, &notFound)

	require.NoError(t, repo.RecordUsage(ctx, created.ID, 3, time.Now()))
	found, err = repo.GetByHash(ctx, model.HashAPIKey("raw-key"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), found.RequestCount)
	assert.NotNil(t, found.LastUsedAt)
}

func TestPreferenceRepository(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := NewPreferenceRepository(store)

	device := "abcdefabcdefabcdefabcdefabcdef12"

	require.NoError(t, repo.AddIgnore(ctx, device, 7))
	require.NoError(t, repo.AddIgnore(ctx, device, 7)) // idempotent
	require.NoError(t, repo.AddIgnore(ctx, device, 9))

	ids, err := repo.ListIgnored(ctx, device)
	require.NoError(t, err)
	assert.Equal(t, []int64{7, 9}, ids)

	require.NoError(t, repo.RemoveIgnore(ctx, device, 7))
	ids, err = repo.ListIgnored(ctx, device)
	require.NoError(t, err)
	assert.Equal(t, []int64{9}, ids)

	// Other devices never see this data.
	other, err := repo.ListIgnored(ctx, "ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	assert.Empty(t, other)

	token, err := repo.CreateToken(ctx, model.FeedToken{Token: "t-abcdefabcdefabcdefabcdefabcdef12", DeviceID: device})
	require.NoError(t, err)

	resolved, err := repo.ResolveToken(ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, device, resolved.DeviceID)
	assert.Equal(t, int64(1), resolved.AccessCount)

	require.NoError(t, repo.RevokeToken(ctx, token.Token))
	_, err = repo.ResolveToken(ctx, token.Token)
	var notFound errs.NotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestCacheTTL(t *testing.T) {
	ctx := context.Background()
	cache := NewCache()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	value, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, cache.Set(ctx, "gone", []byte("v"), -time.Second))
	_, err = cache.Get(ctx, "gone")
	var notFound errs.NotFound
	assert.ErrorAs(t, err, &notFound)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, err = cache.Get(ctx, "k")
	assert.Error(t, err)
}
