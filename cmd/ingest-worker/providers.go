// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/truecivic/parliament-service/internal/config"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/internal/infrastructure/legisinfo"
	"github.com/truecivic/parliament-service/internal/infrastructure/memory"
	"github.com/truecivic/parliament-service/internal/infrastructure/natsqueue"
	"github.com/truecivic/parliament-service/internal/infrastructure/openparliament"
	"github.com/truecivic/parliament-service/internal/infrastructure/postgres"
	"github.com/truecivic/parliament-service/internal/infrastructure/rediscache"
	"github.com/truecivic/parliament-service/internal/scheduler"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// ingestors bundles the wired ingestion services.
type ingestors struct {
	bills       service.BillIngestor
	politicians service.PoliticianIngestor
	votes       service.VoteIngestor
	committees  service.CommitteeIngestor
	debates     service.DebateIngestor
	fetchLogs   port.FetchLogRepository
}

// buildIngestors wires adapters, repositories, and orchestrators. Both
// adapters share one limiter per source regardless of how many fetchers run.
func buildIngestors(ctx context.Context, cfg config.Config) ingestors {
	var (
		bills       port.BillRepository
		politicians port.PoliticianRepository
		votes       port.VoteRepository
		committees  port.CommitteeRepository
		debates     port.DebateRepository
		fetchLogs   port.FetchLogRepository
	)

	if cfg.DatabaseURL == "" {
		slog.InfoContext(ctx, "no database configured, using in-memory store (development mode)")
		store := memory.NewStore()
		bills = memory.NewBillRepository(store)
		politicians = memory.NewPoliticianRepository(store)
		votes = memory.NewVoteRepository(store)
		committees = memory.NewCommitteeRepository(store)
		debates = memory.NewDebateRepository(store)
		fetchLogs = memory.NewFetchLogRepository(store)
	} else {
		client, err := postgres.NewClient(ctx, postgres.Config{
			DSN:          cfg.DatabaseURL,
			MaxOpenConns: 10,
		})
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		if err := client.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate database: %v", err)
		}
		bills = postgres.NewBillRepository(client)
		politicians = postgres.NewPoliticianRepository(client)
		votes = postgres.NewVoteRepository(client)
		committees = postgres.NewCommitteeRepository(client)
		debates = postgres.NewDebateRepository(client)
		fetchLogs = postgres.NewFetchLogRepository(client)
	}

	catalogueLimiter := ratelimit.NewSourceLimiter("catalogue", cfg.CatalogueRPS, cfg.CatalogueBurst)
	enrichmentLimiter := ratelimit.NewSourceLimiter("enrichment", cfg.EnrichmentRPS, cfg.EnrichmentBurst)

	catalogue := openparliament.NewClient(openparliament.Config{
		BaseURL: cfg.CatalogueBaseURL,
		Timeout: cfg.RequestTimeout,
	}, catalogueLimiter)
	enrichment := legisinfo.NewClient(legisinfo.Config{
		BaseURL: cfg.EnrichmentBaseURL,
		Timeout: cfg.RequestTimeout,
	}, enrichmentLimiter)

	return ingestors{
		bills: service.NewBillIngestor(
			service.WithBillSource(catalogue),
			service.WithBillEnrichmentSource(enrichment),
			service.WithBillRepository(bills),
			service.WithBillFetchLogs(fetchLogs),
		),
		politicians: service.NewPoliticianIngestor(
			service.WithPoliticianSource(catalogue),
			service.WithPoliticianRepository(politicians),
			service.WithPoliticianFetchLogs(fetchLogs),
		),
		votes: service.NewVoteIngestor(
			service.WithVoteSource(catalogue),
			service.WithVoteRepository(votes),
			service.WithVoteFetchLogs(fetchLogs),
		),
		committees: service.NewCommitteeIngestor(
			service.WithCommitteeSource(catalogue),
			service.WithCommitteeRepository(committees),
			service.WithCommitteeFetchLogs(fetchLogs),
		),
		debates: service.NewDebateIngestor(
			service.WithDebateSource(catalogue),
			service.WithDebateRepository(debates),
			service.WithDebateFetchLogs(fetchLogs),
		),
		fetchLogs: fetchLogs,
	}
}

// buildRunStore selects the durable run history when a database is
// configured.
func buildRunStore(ctx context.Context, cfg config.Config) scheduler.RunStore {
	if cfg.DatabaseURL == "" {
		return scheduler.NewMemoryRunStore()
	}
	client, err := postgres.NewClient(ctx, postgres.Config{DSN: cfg.DatabaseURL, MaxOpenConns: 5})
	if err != nil {
		log.Fatalf("failed to connect run store: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate run store: %v", err)
	}
	return postgres.NewRunRepository(client)
}

// buildQueue selects the durable work pool when NATS is configured.
func buildQueue(ctx context.Context, cfg config.Config) scheduler.RunQueue {
	if cfg.NATSURL == "" {
		slog.InfoContext(ctx, "no NATS configured, using in-process work queue (development mode)")
		return scheduler.NewMemoryQueue()
	}
	queue, err := natsqueue.NewQueue(ctx, natsqueue.Config{URL: cfg.NATSURL})
	if err != nil {
		log.Fatalf("failed to connect to work pool: %v", err)
	}
	return queue
}

// buildResultCache selects the shared cache when Redis is configured.
func buildResultCache(ctx context.Context, cfg config.Config) port.Cache {
	if cfg.RedisAddr == "" {
		return memory.NewCache()
	}
	return rediscache.NewCache(rediscache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
