// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package openparliament

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

func testClient(baseURL string) *Client {
	client := NewClient(
		Config{BaseURL: baseURL, Timeout: 5 * time.Second, RateWait: time.Second},
		ratelimit.NewSourceLimiter("catalogue", 1000, 1000),
	)
	client.retryInitial = time.Millisecond
	return client
}

func voteKeyForTest() model.VoteKey {
	return model.VoteKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 300}
}

func billListBody(t *testing.T, count int, bills ...map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"objects":    bills,
		"pagination": map[string]any{"count": count, "limit": 50, "offset": 0},
	})
	require.NoError(t, err)
	return body
}

func TestFetchBillsDecodesAndStamps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bills/", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(billListBody(t, 2,
			map[string]any{
				"number":                 "C-11",
				"session":                "44-1",
				"name":                   map[string]any{"en": "Online Streaming Act", "fr": "Loi sur la diffusion continue en ligne"},
				"introduced":             "2022-02-02",
				"sponsor_politician_url": "/politicians/pablo-rodriguez/",
			},
			map[string]any{
				"number":  "C-12",
				"session": "not-a-session",
			},
		))
	}))
	defer server.Close()

	batch, err := testClient(server.URL).FetchBills(context.Background(),
		port.FetchPage{Limit: 50}, port.FetchWindow{})
	require.NoError(t, err)

	// One good record, one per-record terminal error; the batch survives.
	require.Len(t, batch.Records, 1)
	require.Len(t, batch.Errors, 1)
	assert.Equal(t, 2, batch.Total)

	bill := batch.Records[0]
	assert.Equal(t, "C-11", bill.Key.Number)
	assert.Equal(t, 44, bill.Key.Parliament)
	assert.Equal(t, 1, bill.Key.Session)
	assert.Equal(t, "Online Streaming Act", *bill.Title.EN)
	assert.Equal(t, "pablo-rodriguez", *bill.SponsorPoliticianID)
	assert.NotNil(t, bill.LastFetchedAt)
	assert.NotEmpty(t, batch.Provenance.ContentHash)
	assert.Contains(t, batch.Provenance.SourceURL, "/bills/")
}

func TestTransientErrorsAreRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(billListBody(t, 0))
	}))
	defer server.Close()

	batch, err := testClient(server.URL).FetchBills(context.Background(),
		port.FetchPage{Limit: 10}, port.FetchWindow{})
	require.NoError(t, err)
	assert.Empty(t, batch.Records)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTerminal4xxIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchBills(context.Background(),
		port.FetchPage{Limit: 10}, port.FetchWindow{})
	require.Error(t, err)
	var validation errs.Validation
	assert.ErrorAs(t, err, &validation)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRateLimitedStatusIsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write(billListBody(t, 0))
	}))
	defer server.Close()

	_, err := testClient(server.URL).FetchBills(context.Background(),
		port.FetchPage{Limit: 10}, port.FetchWindow{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchVoteRecordsPaginatesUntilEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset := r.URL.Query().Get("offset")
		var objects []map[string]any
		if offset == "0" {
			objects = []map[string]any{
				{"politician_url": "/politicians/alice-a/", "ballot": "Yes"},
				{"politician_url": "/politicians/bob-b/", "ballot": "No"},
			}
		}
		_, _ = w.Write(func() []byte {
			body, _ := json.Marshal(map[string]any{
				"objects":    objects,
				"pagination": map[string]any{"limit": 100, "offset": 0},
			})
			return body
		}())
	}))
	defer server.Close()

	client := testClient(server.URL)
	batch, err := client.FetchVoteRecords(context.Background(),
		voteKeyForTest())
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	assert.Equal(t, "alice-a", batch.Records[0].PoliticianID)
	assert.Equal(t, "44-1-300", batch.Records[0].VoteNaturalID)
}

func TestBallotPositionMapping(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{"Yes", "Yea", true},
		{"No", "Nay", true},
		{"Paired", "Paired", true},
		{"Didn't vote", "Abstain", true},
		{"Maybe", "", false},
	}
	for _, tt := range tests {
		position, err := ballotPosition(tt.raw)
		if !tt.ok {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.expected, string(position))
	}
}

func TestParseSession(t *testing.T) {
	parliament, session, err := parseSession("44-1")
	require.NoError(t, err)
	assert.Equal(t, 44, parliament)
	assert.Equal(t, 1, session)

	_, _, err = parseSession("garbage")
	assert.Error(t, err)
}
