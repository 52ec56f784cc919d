// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/feeds"

	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// feedScope identifies which feed variant a route serves.
type feedScope string

const (
	feedScopeAll         feedScope = "all"
	feedScopeBillsLatest feedScope = "bills/latest"
	feedScopeBillTag     feedScope = "bills/tag"
	feedScopeBill        feedScope = "bill"
	feedScopeMP          feedScope = "mp"
	feedScopeCommittee   feedScope = "committee"
	feedScopePersonal    feedScope = "p"
)

// feedFormat selects the syndication rendering.
type feedFormat string

const (
	feedFormatRSS  feedFormat = "rss"
	feedFormatAtom feedFormat = "atom"
)

// feedBodyTTL is how long a rendered body stays cached.
const feedBodyTTL = 5 * time.Minute

// feedCacheEntry is the cached rendering of one scope at one fingerprint.
type feedCacheEntry struct {
	Body         []byte    `json:"body"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"last_modified"`
}

// Feed builds the handler for one scope/format pair.
func (h *Handler) Feed(scope feedScope, format feedFormat) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.serveFeed(w, r, scope, format)
	}
}

func (h *Handler) serveFeed(w http.ResponseWriter, r *http.Request, scope feedScope, format feedFormat) {
	ctx := r.Context()
	jur := jurisdiction(r)

	// Client rate limits: global per process, then per token or per IP.
	if decision := h.feedLimits.Allow("feed-global", constants.FeedGlobalResponsesHr); !decision.Allowed {
		h.WriteError(w, r, errs.NewRateLimited("feed capacity exhausted", decision.RetryAfter))
		return
	}

	scopeKey := string(scope)
	var excludeBillIDs []int64

	switch scope {
	case feedScopeBillTag:
		scopeKey = fmt.Sprintf("%s/%s", scope, chi.URLParam(r, "tag"))
	case feedScopeBill, feedScopeMP, feedScopeCommittee:
		scopeKey = fmt.Sprintf("%s/%s", scope, chi.URLParam(r, "id"))
	case feedScopePersonal:
		token := chi.URLParam(r, "token")
		resolved, err := h.preferences.ResolveFeedToken(ctx, token)
		if err != nil {
			h.WriteError(w, r, err)
			return
		}
		if decision := h.feedLimits.Allow("feed-token:"+token, constants.FeedTokenRequestsHour); !decision.Allowed {
			h.WriteError(w, r, errs.NewRateLimited("feed token rate limit exceeded", decision.RetryAfter))
			return
		}
		ids, err := h.preferences.IgnoredIDs(ctx, resolved.DeviceID)
		if err != nil {
			h.WriteError(w, r, err)
			return
		}
		excludeBillIDs = ids
		scopeKey = fmt.Sprintf("%s/%s", scope, token)
	}

	if scope != feedScopePersonal {
		ip := clientIPForFeeds(r)
		if decision := h.feedLimits.Allow("feed-ip:"+ip, constants.FeedIPRequestsPerHour); !decision.Allowed {
			h.WriteError(w, r, errs.NewRateLimited("feed rate limit exceeded", decision.RetryAfter))
			return
		}
	}

	entries, err := h.feedEntries(r, scope, excludeBillIDs)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	fingerprint := service.Fingerprint(entries)
	etag := feedETag(jur, scopeKey, string(format), fingerprint)

	if r.Header.Get("If-None-Match") == etag {
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	bodyKey := fmt.Sprintf("feed:%s:%s:%s:%d", jur, scopeKey, format, fingerprint)
	lastKey := fmt.Sprintf("feed:last:%s:%s:%s", jur, scopeKey, format)

	if entry, ok := h.cachedFeed(ctx, bodyKey); ok {
		writeFeedBody(w, format, entry, "public, max-age=300")
		return
	}

	// Rebuild budget: at most 12 rebuilds per scope per hour. Over budget,
	// the previous body is served stale.
	if decision := h.feedLimits.Allow("feed-rebuild:"+string(scope)+":"+jur+":"+scopeKey, h.rebuildBudget); !decision.Allowed {
		if entry, ok := h.cachedFeed(ctx, lastKey); ok {
			writeFeedBody(w, format, entry, "public, max-age=300, stale-while-revalidate=3600")
			return
		}
		h.WriteError(w, r, errs.NewRateLimited("feed rebuild budget exhausted", decision.RetryAfter))
		return
	}

	body, err := renderFeed(jur, scopeKey, format, entries)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	entry := feedCacheEntry{
		Body:         body,
		ETag:         etag,
		LastModified: lastModified(entries),
	}
	h.storeFeed(ctx, bodyKey, entry, feedBodyTTL)
	h.storeFeed(ctx, lastKey, entry, time.Hour)

	writeFeedBody(w, format, entry, "public, max-age=300")
}

func (h *Handler) feedEntries(r *http.Request, scope feedScope, excludeBillIDs []int64) ([]service.FeedEntry, error) {
	ctx := r.Context()
	jur := jurisdiction(r)

	switch scope {
	case feedScopeAll:
		return h.feeds.AllEntries(ctx, jur, nil)
	case feedScopeBillsLatest:
		return h.feeds.LatestBillEntries(ctx, jur, nil)
	case feedScopeBillTag:
		return h.feeds.TagBillEntries(ctx, jur, chi.URLParam(r, "tag"))
	case feedScopeBill:
		return h.feeds.BillEntries(ctx, jur, chi.URLParam(r, "id"))
	case feedScopeMP:
		return h.feeds.PoliticianEntries(ctx, jur, chi.URLParam(r, "id"))
	case feedScopeCommittee:
		return h.feeds.CommitteeEntries(ctx, jur, chi.URLParam(r, "id"))
	case feedScopePersonal:
		return h.feeds.AllEntries(ctx, jur, excludeBillIDs)
	}
	return nil, errs.NewNotFound("unknown feed scope")
}

func (h *Handler) cachedFeed(ctx context.Context, key string) (feedCacheEntry, bool) {
	var entry feedCacheEntry
	if h.feedCache == nil {
		return entry, false
	}
	raw, err := h.feedCache.Get(ctx, key)
	if err != nil {
		return entry, false
	}
	if json.Unmarshal(raw, &entry) != nil {
		return entry, false
	}
	return entry, true
}

func (h *Handler) storeFeed(ctx context.Context, key string, entry feedCacheEntry, ttl time.Duration) {
	if h.feedCache == nil {
		return
	}
	if raw, err := json.Marshal(entry); err == nil {
		_ = h.feedCache.Set(ctx, key, raw, ttl)
	}
}

func writeFeedBody(w http.ResponseWriter, format feedFormat, entry feedCacheEntry, cacheControl string) {
	contentType := "application/rss+xml; charset=utf-8"
	if format == feedFormatAtom {
		contentType = "application/atom+xml; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", entry.ETag)
	w.Header().Set("Last-Modified", entry.LastModified.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", cacheControl)
	_, _ = w.Write(entry.Body)
}

func feedETag(jurisdiction, scopeKey, format string, fingerprint int64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s|%d", jurisdiction, scopeKey, format, fingerprint))
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func lastModified(entries []service.FeedEntry) time.Time {
	var latest time.Time
	for _, entry := range entries {
		if entry.UpdatedAt.After(latest) {
			latest = entry.UpdatedAt
		}
	}
	if latest.IsZero() {
		latest = time.Unix(0, 0)
	}
	return latest
}

// renderFeed turns entries into the syndication document.
func renderFeed(jurisdiction, scopeKey string, format feedFormat, entries []service.FeedEntry) ([]byte, error) {
	feed := &feeds.Feed{
		Title:       fmt.Sprintf("TrueCivic — %s (%s)", scopeKey, jurisdiction),
		Link:        &feeds.Link{Href: "https://truecivic.ca/feeds/" + jurisdiction + "/" + scopeKey},
		Description: "Canadian federal legislative activity",
		Updated:     lastModified(entries),
	}

	for _, entry := range entries {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          entry.GUID,
			Title:       entry.Title,
			Link:        &feeds.Link{Href: entry.Link},
			Description: entry.Description,
			Created:     entry.Date,
			Updated:     entry.UpdatedAt,
		})
	}

	var (
		body string
		err  error
	)
	if format == feedFormatAtom {
		body, err = feed.ToAtom()
	} else {
		body, err = feed.ToRss()
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to render feed", err)
	}
	return []byte(body), nil
}

// clientIPForFeeds mirrors the auth middleware's extraction for feed buckets.
func clientIPForFeeds(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
