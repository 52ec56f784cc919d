// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package handler is the HTTP delivery layer: list/detail endpoints, search,
// personalization, and syndication feeds over the repositories and services.
package handler

import (
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/constants"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// Option configures a Handler.
type Option func(*Handler)

// WithBills sets the bill repository.
func WithBills(repo port.BillRepository) Option {
	return func(h *Handler) { h.bills = repo }
}

// WithPoliticians sets the politician repository.
func WithPoliticians(repo port.PoliticianRepository) Option {
	return func(h *Handler) { h.politicians = repo }
}

// WithVotes sets the vote repository.
func WithVotes(repo port.VoteRepository) Option {
	return func(h *Handler) { h.votes = repo }
}

// WithCommittees sets the committee repository.
func WithCommittees(repo port.CommitteeRepository) Option {
	return func(h *Handler) { h.committees = repo }
}

// WithDebates sets the debate repository.
func WithDebates(repo port.DebateRepository) Option {
	return func(h *Handler) { h.debates = repo }
}

// WithSearch sets the search service.
func WithSearch(search service.SearchService) Option {
	return func(h *Handler) { h.search = search }
}

// WithPreferences sets the preference service.
func WithPreferences(preferences service.PreferenceService) Option {
	return func(h *Handler) { h.preferences = preferences }
}

// WithFeeds sets the feed service.
func WithFeeds(feeds service.FeedService) Option {
	return func(h *Handler) { h.feeds = feeds }
}

// WithFeedCache sets the rendered-feed cache.
func WithFeedCache(cache port.Cache) Option {
	return func(h *Handler) { h.feedCache = cache }
}

// WithFeedLimits sets the registry behind feed client and rebuild budgets.
func WithFeedLimits(registry *ratelimit.Registry) Option {
	return func(h *Handler) { h.feedLimits = registry }
}

// WithFeedRebuildBudget overrides the per-scope rebuild cap.
func WithFeedRebuildBudget(perHour int) Option {
	return func(h *Handler) {
		if perHour > 0 {
			h.rebuildBudget = perHour
		}
	}
}

// WithReadiness adds dependency probes surfaced by the health endpoint.
func WithReadiness(checks map[string]port.ReadinessChecker) Option {
	return func(h *Handler) { h.readiness = checks }
}

// Handler holds the delivery-layer dependencies.
type Handler struct {
	bills       port.BillRepository
	politicians port.PoliticianRepository
	votes       port.VoteRepository
	committees  port.CommitteeRepository
	debates     port.DebateRepository

	search      service.SearchService
	preferences service.PreferenceService
	feeds       service.FeedService

	feedCache  port.Cache
	feedLimits *ratelimit.Registry
	// rebuildBudget caps rebuilds per feed scope per hour.
	rebuildBudget int

	readiness map[string]port.ReadinessChecker

	jurisdictions map[string]bool
}

// New creates the handler using the option pattern. Only the ca-federal
// jurisdiction is served today; unknown jurisdictions 404.
func New(opts ...Option) *Handler {
	h := &Handler{
		rebuildBudget: constants.FeedRebuildsPerHour,
		jurisdictions: map[string]bool{
			constants.JurisdictionCAFederal: true,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
