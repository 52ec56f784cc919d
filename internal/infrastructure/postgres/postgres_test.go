// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewClientFromDB(db), mock
}

func TestBillUpsertCountsCreatedAndUpdated(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewBillRepository(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO bills`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).
			AddRow(true).
			AddRow(false))
	mock.ExpectCommit()

	introduced := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	bills := []model.Bill{
		{
			Key:            model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-11"},
			Title:          model.Bilingual{EN: model.StringPtr("Bill 11")},
			IntroducedDate: &introduced,
			SubjectTags:    []string{"broadcasting"},
			SourcePrimary:  true,
		},
		{
			Key:           model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-12"},
			Title:         model.Bilingual{EN: model.StringPtr("Bill 12")},
			SourcePrimary: true,
		},
	}

	result, err := repo.UpsertMany(ctx, bills)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillUpsertNoOpReturnsNoRows(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewBillRepository(client)

	// An identical re-upsert is filtered by the IS DISTINCT FROM guard: the
	// statement returns zero rows and both counters stay at zero.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO bills`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}))
	mock.ExpectCommit()

	result, err := repo.UpsertMany(ctx, []model.Bill{{
		Key: model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-11"},
	}})
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBillUpsertRejectsOversizedBatch(t *testing.T) {
	ctx := context.Background()
	client, _ := newMockClient(t)
	repo := NewBillRepository(client)

	bills := make([]model.Bill, 501)
	_, err := repo.UpsertMany(ctx, bills)
	var validation errs.Validation
	assert.ErrorAs(t, err, &validation)
}

func TestBillGetByNaturalKeyNotFound(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewBillRepository(client)

	mock.ExpectQuery(`SELECT .+ FROM bills`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByNaturalKey(ctx, model.BillKey{
		Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-404",
	})
	var notFound errs.NotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestVoteRecordUpsertSingleTransaction(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewVoteRepository(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO vote_records`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).
			AddRow(true).
			AddRow(true).
			AddRow(false))
	mock.ExpectCommit()

	records := []model.VoteRecord{
		{PoliticianID: "a", Position: model.BallotYea},
		{PoliticianID: "b", Position: model.BallotNay},
		{PoliticianID: "c", Position: model.BallotPaired},
	}
	result, err := repo.UpsertRecords(ctx, "44-1-300", records)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewDebateRepository(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO debates`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.UpsertMany(ctx, []model.Debate{{
		Key:  model.DebateKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 1},
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchLogAppend(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewFetchLogRepository(client)

	mock.ExpectQuery(`INSERT INTO fetch_logs`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(12), time.Now()))

	entry, err := repo.Append(ctx, model.FetchLog{
		Source:           "openparliament.bills",
		Status:           model.FetchPartial,
		RecordsAttempted: 50,
		RecordsSucceeded: 47,
		RecordsFailed:    3,
		Duration:         4 * time.Second,
		Parameters:       map[string]any{"limit": 50},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPageLimitZeroSkipsQuery(t *testing.T) {
	ctx := context.Background()
	client, mock := newMockClient(t)
	repo := NewVoteRepository(client)

	// limit=0 still reports the total without fetching rows.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM votes`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	votes, total, err := repo.GetByFilter(ctx,
		model.VoteFilter{Jurisdiction: "ca-federal"}, paging.Params{Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, votes)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
