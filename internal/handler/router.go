// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/middleware"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// apiTimeout is the per-endpoint request budget.
const apiTimeout = 10 * time.Second

// Routes assembles the full router: health, the authenticated API surface,
// and the public feed surface.
func (h *Handler) Routes(keys service.APIKeyService, authFailures *ratelimit.Registry) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestIDMiddleware())

	router.Get("/health", h.Health)

	router.Route("/api/v1/{jurisdiction}", func(api chi.Router) {
		api.Use(timeoutMiddleware(apiTimeout))
		api.Use(middleware.APIKeyMiddleware(keys, authFailures, h.WriteError))
		api.Use(middleware.AnonIDMiddleware(h.WriteError))
		api.Use(h.jurisdictionMiddleware)

		api.Get("/bills", h.ListBills)
		api.Get("/bills/search", h.SearchBills)
		api.Get("/bills/{id}", h.GetBill)

		api.Get("/politicians", h.ListPoliticians)
		api.Get("/politicians/{id}", h.GetPolitician)

		api.Get("/votes", h.ListVotes)
		api.Get("/votes/{id}", h.GetVote)
		api.Get("/votes/{id}/records", h.ListVoteRecords)

		api.Get("/committees", h.ListCommittees)
		api.Get("/committees/{id}", h.GetCommittee)
		api.Get("/committees/{id}/meetings", h.ListCommitteeMeetings)

		api.Get("/debates", h.ListDebates)
		api.Get("/debates/{id}", h.GetDebate)
		api.Get("/debates/{id}/speeches", h.ListSpeeches)

		api.Get("/search", h.Search)

		api.Post("/preferences/ignore", h.AddIgnore)
		api.Delete("/preferences/ignore", h.RemoveIgnore)
		api.Get("/preferences/ignored", h.ListIgnored)
		api.Post("/preferences/feed-token", h.CreateFeedToken)
		api.Delete("/preferences/feed-token/{token}", h.RevokeFeedToken)
	})

	router.Route("/feeds/{jurisdiction}", func(feeds chi.Router) {
		feeds.Use(h.jurisdictionMiddleware)

		feeds.Get("/all.xml", h.Feed(feedScopeAll, feedFormatRSS))
		feeds.Get("/all.atom", h.Feed(feedScopeAll, feedFormatAtom))
		feeds.Get("/bills/latest.xml", h.Feed(feedScopeBillsLatest, feedFormatRSS))
		feeds.Get("/bills/latest.atom", h.Feed(feedScopeBillsLatest, feedFormatAtom))
		feeds.Get("/bills/tag/{tag}.xml", h.Feed(feedScopeBillTag, feedFormatRSS))
		feeds.Get("/bills/tag/{tag}.atom", h.Feed(feedScopeBillTag, feedFormatAtom))
		feeds.Get("/bill/{id}.xml", h.Feed(feedScopeBill, feedFormatRSS))
		feeds.Get("/bill/{id}.atom", h.Feed(feedScopeBill, feedFormatAtom))
		feeds.Get("/mp/{id}.xml", h.Feed(feedScopeMP, feedFormatRSS))
		feeds.Get("/mp/{id}.atom", h.Feed(feedScopeMP, feedFormatAtom))
		feeds.Get("/committee/{id}.xml", h.Feed(feedScopeCommittee, feedFormatRSS))
		feeds.Get("/committee/{id}.atom", h.Feed(feedScopeCommittee, feedFormatAtom))
		feeds.Get("/p/{token}.xml", h.Feed(feedScopePersonal, feedFormatRSS))
		feeds.Get("/p/{token}.atom", h.Feed(feedScopePersonal, feedFormatAtom))
	})

	return router
}

// jurisdictionMiddleware rejects unknown jurisdiction slugs.
func (h *Handler) jurisdictionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jurisdiction := chi.URLParam(r, "jurisdiction")
		if !h.jurisdictions[jurisdiction] {
			h.WriteError(w, r, errs.NewNotFound("unknown jurisdiction: "+jurisdiction))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds each request; store queries watch the context and
// abandon work when it expires.
func timeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// jurisdiction pulls the validated slug.
func jurisdiction(r *http.Request) string {
	return chi.URLParam(r, "jurisdiction")
}

// parsePage applies the API pagination contract.
func parsePage(r *http.Request) (paging.Params, error) {
	return paging.Parse(
		r.URL.Query().Get("limit"),
		r.URL.Query().Get("offset"),
		constants.DefaultPageLimit,
		constants.MaxPageLimit,
	)
}

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errs.NewValidation(name + " must be an integer")
	}
	if value < 0 {
		return nil, errs.NewValidation(name + " must not be negative")
	}
	return &value, nil
}

// strQuery returns an optional bounded string query parameter.
func strQuery(r *http.Request, name string, maxLen int) (*string, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if len(raw) > maxLen {
		return nil, errs.NewValidation(name + " is too long")
	}
	return &raw, nil
}

// boolQuery parses an optional boolean query parameter.
func boolQuery(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}

// excludedBillIDs resolves the device's ignore set when the request carries a
// device ID.
func (h *Handler) excludedBillIDs(r *http.Request) ([]int64, error) {
	deviceID := middleware.AnonIDFromContext(r.Context())
	if deviceID == "" || h.preferences == nil {
		return nil, nil
	}
	return h.preferences.IgnoredIDs(r.Context(), deviceID)
}

// ensureValidStatus validates a bill status filter against the known set.
func ensureValidStatus(status *string) error {
	if status == nil {
		return nil
	}
	for _, known := range model.BillStatuses {
		if *status == known {
			return nil
		}
	}
	return errs.NewValidation("unknown status filter")
}
