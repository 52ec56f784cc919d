// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/truecivic/parliament-service/internal/config"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/internal/handler"
	"github.com/truecivic/parliament-service/internal/infrastructure/memory"
	"github.com/truecivic/parliament-service/internal/infrastructure/postgres"
	"github.com/truecivic/parliament-service/internal/infrastructure/rediscache"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// repositories bundles the wired persistence layer.
type repositories struct {
	bills       port.BillRepository
	politicians port.PoliticianRepository
	votes       port.VoteRepository
	committees  port.CommitteeRepository
	debates     port.DebateRepository
	fetchLogs   port.FetchLogRepository
	apiKeys     port.APIKeyRepository
	preferences port.PreferenceRepository

	readiness map[string]port.ReadinessChecker
}

// buildRepositories selects Postgres when configured, otherwise the
// in-memory development store.
func buildRepositories(ctx context.Context, cfg config.Config) repositories {
	if cfg.DatabaseURL == "" {
		slog.InfoContext(ctx, "no database configured, using in-memory store (development mode)")
		store := memory.NewStore()
		return repositories{
			bills:       memory.NewBillRepository(store),
			politicians: memory.NewPoliticianRepository(store),
			votes:       memory.NewVoteRepository(store),
			committees:  memory.NewCommitteeRepository(store),
			debates:     memory.NewDebateRepository(store),
			fetchLogs:   memory.NewFetchLogRepository(store),
			apiKeys:     memory.NewAPIKeyRepository(store),
			preferences: memory.NewPreferenceRepository(store),
			readiness:   map[string]port.ReadinessChecker{"store": store},
		}
	}

	client, err := postgres.NewClient(ctx, postgres.Config{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: 25,
		MaxIdleConns: 5,
	})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	return repositories{
		bills:       postgres.NewBillRepository(client),
		politicians: postgres.NewPoliticianRepository(client),
		votes:       postgres.NewVoteRepository(client),
		committees:  postgres.NewCommitteeRepository(client),
		debates:     postgres.NewDebateRepository(client),
		fetchLogs:   postgres.NewFetchLogRepository(client),
		apiKeys:     postgres.NewAPIKeyRepository(client),
		preferences: postgres.NewPreferenceRepository(client),
		readiness:   map[string]port.ReadinessChecker{"database": client},
	}
}

// buildCache selects Redis when configured, otherwise the in-memory cache.
func buildCache(ctx context.Context, cfg config.Config) port.Cache {
	if cfg.RedisAddr == "" {
		slog.InfoContext(ctx, "no cache configured, using in-memory cache")
		return memory.NewCache()
	}
	return rediscache.NewCache(rediscache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// buildHandler assembles the delivery layer over the wired infrastructure.
func buildHandler(ctx context.Context, cfg config.Config, repos repositories, cache port.Cache) (*handler.Handler, service.APIKeyService, *ratelimit.Registry) {
	apiKeys := service.NewAPIKeyService(
		service.WithAPIKeyRepository(repos.apiKeys),
		service.WithAPIKeyLimiter(ratelimit.NewRegistry()),
	)

	preferences := service.NewPreferenceService(
		service.WithPreferenceRepository(repos.preferences),
		service.WithPreferenceBillRepository(repos.bills),
	)

	search := service.NewSearchService(
		service.WithSearchBillRepository(repos.bills),
		service.WithSearchDebateRepository(repos.debates),
		service.WithSearchCache(cache),
	)

	feeds := service.NewFeedService(
		service.WithFeedBillRepository(repos.bills),
		service.WithFeedVoteRepository(repos.votes),
		service.WithFeedDebateRepository(repos.debates),
		service.WithFeedCommitteeRepository(repos.committees),
		service.WithFeedBaseURL(cfg.FeedBaseURL),
	)

	h := handler.New(
		handler.WithBills(repos.bills),
		handler.WithPoliticians(repos.politicians),
		handler.WithVotes(repos.votes),
		handler.WithCommittees(repos.committees),
		handler.WithDebates(repos.debates),
		handler.WithSearch(search),
		handler.WithPreferences(preferences),
		handler.WithFeeds(feeds),
		handler.WithFeedCache(cache),
		handler.WithFeedLimits(ratelimit.NewRegistry()),
		handler.WithFeedRebuildBudget(cfg.FeedRebuildBudget),
		handler.WithReadiness(repos.readiness),
	)

	return h, apiKeys, ratelimit.NewRegistry()
}
