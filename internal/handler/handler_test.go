// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/infrastructure/memory"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	bills  *memory.BillRepository
	votes  *memory.VoteRepository
	keys   service.APIKeyService
	rawKey string
}

func newTestEnv(t *testing.T, keyLimit int) *testEnv {
	t.Helper()

	store := memory.NewStore()
	bills := memory.NewBillRepository(store)
	votes := memory.NewVoteRepository(store)
	committees := memory.NewCommitteeRepository(store)
	debates := memory.NewDebateRepository(store)
	cache := memory.NewCache()

	keys := service.NewAPIKeyService(
		service.WithAPIKeyRepository(memory.NewAPIKeyRepository(store)),
		service.WithAPIKeyLimiter(ratelimit.NewRegistry()),
	)
	rawKey, _, err := keys.Create(context.Background(), "test", keyLimit, nil)
	require.NoError(t, err)

	preferences := service.NewPreferenceService(
		service.WithPreferenceRepository(memory.NewPreferenceRepository(store)),
		service.WithPreferenceBillRepository(bills),
	)
	search := service.NewSearchService(
		service.WithSearchBillRepository(bills),
		service.WithSearchDebateRepository(debates),
		service.WithSearchCache(cache),
	)
	feeds := service.NewFeedService(
		service.WithFeedBillRepository(bills),
		service.WithFeedVoteRepository(votes),
		service.WithFeedDebateRepository(debates),
		service.WithFeedCommitteeRepository(committees),
	)

	h := New(
		WithBills(bills),
		WithPoliticians(memory.NewPoliticianRepository(store)),
		WithVotes(votes),
		WithCommittees(committees),
		WithDebates(debates),
		WithSearch(search),
		WithPreferences(preferences),
		WithFeeds(feeds),
		WithFeedCache(cache),
		WithFeedLimits(ratelimit.NewRegistry()),
		WithReadiness(nil),
	)

	server := httptest.NewServer(h.Routes(keys, ratelimit.NewRegistry()))
	t.Cleanup(server.Close)

	return &testEnv{
		server: server,
		store:  store,
		bills:  bills,
		votes:  votes,
		keys:   keys,
		rawKey: rawKey,
	}
}

func (e *testEnv) request(t *testing.T, method, path string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	if e.rawKey != "" && strings.HasPrefix(path, "/api/") {
		req.Header.Set("X-API-Key", e.rawKey)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodePage(t *testing.T, resp *http.Response) (items []json.RawMessage, total int, hasMore bool) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var body struct {
		Items   []json.RawMessage `json:"items"`
		Total   int               `json:"total"`
		HasMore bool              `json:"has_more"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Items, body.Total, body.HasMore
}

func seedBills(t *testing.T, env *testEnv, n int) {
	t.Helper()
	var bills []model.Bill
	for i := 1; i <= n; i++ {
		introduced := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
		bills = append(bills, model.Bill{
			Key:            model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: fmt.Sprintf("C-%d", i)},
			Title:          model.Bilingual{EN: model.StringPtr(fmt.Sprintf("Bill %d", i))},
			IntroducedDate: &introduced,
			SourcePrimary:  true,
		})
	}
	_, err := env.bills.UpsertMany(context.Background(), bills)
	require.NoError(t, err)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, 100)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/ca-federal/bills", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	var body struct {
		Error struct {
			Code      string `json:"code"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestAuthBadKey(t *testing.T) {
	env := newTestEnv(t, 100)
	resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/bills",
		map[string]string{"X-API-Key": "pk_not_a_real_key"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestKeyRateLimitExhaustion(t *testing.T) {
	env := newTestEnv(t, 5)

	for i := 0; i < 5; i++ {
		resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/bills", nil)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/bills", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))

	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 3600)
}

func TestBillListPagination(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedBills(t, env, 7)

	// limit=0 returns an empty page with the real total.
	resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/bills?limit=0", nil)
	items, total, hasMore := decodePage(t, resp)
	assert.Empty(t, items)
	assert.Equal(t, 7, total)
	assert.True(t, hasMore)

	// offset past the total returns empty with has_more=false.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills?offset=100", nil)
	items, total, hasMore = decodePage(t, resp)
	assert.Empty(t, items)
	assert.Equal(t, 7, total)
	assert.False(t, hasMore)

	// A window in the middle.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills?limit=3&offset=3", nil)
	items, total, hasMore = decodePage(t, resp)
	assert.Len(t, items, 3)
	assert.Equal(t, 7, total)
	assert.True(t, hasMore)

	// Out-of-range limit is a validation error.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills?limit=9999", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown sort field is a validation error.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills?sort=sneaky", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownJurisdiction(t *testing.T) {
	env := newTestEnv(t, 1000)
	resp := env.request(t, http.MethodGet, "/api/v1/ca-mars/bills", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPersonalizationFiltersLists(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedBills(t, env, 5)

	device := "abcdefabcdefabcdefabcdefabcdef12"

	// Ignore one bill.
	req, _ := http.NewRequest(http.MethodPost,
		env.server.URL+"/api/v1/ca-federal/preferences/ignore", strings.NewReader(
			`{"entity_type":"bill","entity_id":"44-1-C-3"}`))
	req.Header.Set("X-API-Key", env.rawKey)
	req.Header.Set("X-Anon-Id", device)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// The device's list excludes it and the total reflects the filter.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills",
		map[string]string{"X-Anon-Id": device})
	items, total, _ := decodePage(t, resp)
	assert.Len(t, items, 4)
	assert.Equal(t, 4, total)
	for _, raw := range items {
		assert.NotContains(t, string(raw), `"C-3"`)
	}

	// Other clients still see everything.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills", nil)
	_, total, _ = decodePage(t, resp)
	assert.Equal(t, 5, total)

	// Ignored listing for the device.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/preferences/ignored",
		map[string]string{"X-Anon-Id": device})
	defer func() { _ = resp.Body.Close() }()
	var ignored struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ignored))
	assert.Equal(t, 1, ignored.Total)
}

func TestMalformedAnonIDRejected(t *testing.T) {
	env := newTestEnv(t, 1000)
	resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/bills",
		map[string]string{"X-Anon-Id": "nope"})
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVoteDetailIncludeRecords(t *testing.T) {
	env := newTestEnv(t, 1000)

	vote := model.Vote{
		Key:     model.VoteKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: 300},
		Date:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Chamber: "House",
		Result:  model.VotePassed,
		Yeas:    177,
		Nays:    140,
	}
	_, err := env.votes.UpsertMany(context.Background(), []model.Vote{vote})
	require.NoError(t, err)

	// A vote with tallies but no ballots yet serves fine.
	resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/votes/44-1-300?include_records=true", nil)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var detail struct {
		Yeas    int                `json:"yeas"`
		Records []model.VoteRecord `json:"records"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	assert.Equal(t, 177, detail.Yeas)
	assert.Empty(t, detail.Records)

	// Records endpoint returns an empty page, not an error.
	resp2 := env.request(t, http.MethodGet, "/api/v1/ca-federal/votes/44-1-300/records", nil)
	items, total, _ := decodePage(t, resp2)
	assert.Empty(t, items)
	assert.Zero(t, total)
}

func TestFeedETagAnd304(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedBills(t, env, 3)

	resp := env.request(t, http.MethodGet, "/feeds/ca-federal/bills/latest.xml", nil)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.NotEmpty(t, resp.Header.Get("Last-Modified"))
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=300")

	// Same content, prior ETag: 304 with no body.
	resp2 := env.request(t, http.MethodGet, "/feeds/ca-federal/bills/latest.xml",
		map[string]string{"If-None-Match": etag})
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusNotModified, resp2.StatusCode)
}

func TestFeedRebuildBudget(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedBills(t, env, 1)

	// Advance the store clock a full second per call so every content change
	// lands on a fresh fingerprint.
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.store.SetClock(func() time.Time {
		current = current.Add(time.Second)
		return current
	})

	var lastETag string
	// Burn through the rebuild budget by changing content each time.
	for i := 0; i < 14; i++ {
		bill := model.Bill{
			Key:           model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-1"},
			Title:         model.Bilingual{EN: model.StringPtr(fmt.Sprintf("Title v%d", i))},
			Status:        "introduced",
			SourcePrimary: true,
		}
		introduced := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
		bill.IntroducedDate = &introduced
		_, err := env.bills.UpsertMany(context.Background(), []model.Bill{bill})
		require.NoError(t, err)

		resp := env.request(t, http.MethodGet, "/feeds/ca-federal/bills/latest.xml", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		if i == 11 {
			lastETag = resp.Header.Get("ETag")
		}
		if i >= 12 {
			// Budget exhausted: the 12th body is served stale.
			assert.Equal(t, lastETag, resp.Header.Get("ETag"))
			assert.Contains(t, resp.Header.Get("Cache-Control"), "stale-while-revalidate")
		}
		_ = resp.Body.Close()
	}
}

func TestPersonalizedFeed(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedBills(t, env, 3)

	device := "abcdefabcdefabcdefabcdefabcdef12"

	// Mint a token and ignore bill C-2.
	req, _ := http.NewRequest(http.MethodPost,
		env.server.URL+"/api/v1/ca-federal/preferences/feed-token", nil)
	req.Header.Set("X-API-Key", env.rawKey)
	req.Header.Set("X-Anon-Id", device)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var minted struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&minted))
	_ = resp.Body.Close()
	require.GreaterOrEqual(t, len(minted.Token), 32)

	req, _ = http.NewRequest(http.MethodPost,
		env.server.URL+"/api/v1/ca-federal/preferences/ignore", strings.NewReader(
			`{"entity_type":"bill","entity_id":"44-1-C-2"}`))
	req.Header.Set("X-API-Key", env.rawKey)
	req.Header.Set("X-Anon-Id", device)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	// The personalized feed omits the ignored bill's items.
	resp = env.request(t, http.MethodGet, "/feeds/ca-federal/p/"+minted.Token+".xml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readAll(t, resp)
	assert.NotContains(t, body, "44-1-C-2:")
	assert.Contains(t, body, "44-1-C-1:")
	assert.Contains(t, body, "44-1-C-3:")

	// Unknown tokens 404.
	resp = env.request(t, http.MethodGet, "/feeds/ca-federal/p/"+strings.Repeat("f", 64)+".xml", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAtomVariant(t *testing.T) {
	env := newTestEnv(t, 1000)
	seedBills(t, env, 1)

	resp := env.request(t, http.MethodGet, "/feeds/ca-federal/all.atom", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "atom+xml")
	body := readAll(t, resp)
	assert.Contains(t, body, "<feed")
}

func TestHealthEndpointIsUnauthenticated(t *testing.T) {
	env := newTestEnv(t, 1000)
	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/health", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBillSearchEndpoint(t *testing.T) {
	env := newTestEnv(t, 1000)

	bill := model.Bill{
		Key:           model.BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-11"},
		Title:         model.Bilingual{EN: model.StringPtr("Online Streaming Act")},
		Summary:       model.StringPtr("An Act respecting broadcasting"),
		SourcePrimary: true,
	}
	_, err := env.bills.UpsertMany(context.Background(), []model.Bill{bill})
	require.NoError(t, err)

	resp := env.request(t, http.MethodGet, "/api/v1/ca-federal/bills/search?q=broadcasting", nil)
	items, total, _ := decodePage(t, resp)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Contains(t, string(items[0]), "snippet")

	// Missing q is a validation error.
	resp = env.request(t, http.MethodGet, "/api/v1/ca-federal/bills/search", nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}
