// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package config assembles the process configuration from environment
// variables with documented defaults. The process owns one Config instance
// built at startup and passes it through constructors; nothing reads the
// environment after boot. An empty environment boots development mode:
// in-memory store, in-memory cache, in-process work queue.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full option surface shared by both processes.
type Config struct {
	// DatabaseURL selects Postgres; empty selects the in-memory store.
	DatabaseURL string
	// RedisAddr selects the shared cache; empty selects the in-memory cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATSURL selects the durable work pool; empty selects the in-process
	// queue (single-process development mode).
	NATSURL string

	// HTTP server.
	Port string
	Bind string

	// CORSOrigins is the allowed origin list for browser clients.
	CORSOrigins []string

	// Work pool identity.
	WorkPool   string
	WorkerName string
	// TaskConcurrency bounds concurrent tasks per run.
	TaskConcurrency int

	// Upstream adapters.
	CatalogueBaseURL  string
	EnrichmentBaseURL string
	RequestTimeout    time.Duration
	CatalogueRPS      float64
	CatalogueBurst    int
	EnrichmentRPS     float64
	EnrichmentBurst   int

	// FeedRebuildBudget overrides the per-scope rebuild cap when positive.
	FeedRebuildBudget int

	// FeedBaseURL is the public link prefix used inside feed items.
	FeedBaseURL string
}

// Load reads the environment with defaults applied.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NATS_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("BIND", "*")
	v.SetDefault("CORS_ORIGINS", "")
	v.SetDefault("WORK_POOL", "ingest-default")
	v.SetDefault("WORKER_NAME", "worker-1")
	v.SetDefault("TASK_CONCURRENCY", 10)
	v.SetDefault("CATALOGUE_BASE_URL", "")
	v.SetDefault("ENRICHMENT_BASE_URL", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CATALOGUE_RPS", 2.0)
	v.SetDefault("CATALOGUE_BURST", 10)
	v.SetDefault("ENRICHMENT_RPS", 0.5)
	v.SetDefault("ENRICHMENT_BURST", 2)
	v.SetDefault("FEED_REBUILD_BUDGET", 0)
	v.SetDefault("FEED_BASE_URL", "https://truecivic.ca")

	var origins []string
	if raw := v.GetString("CORS_ORIGINS"); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return Config{
		DatabaseURL:       v.GetString("DATABASE_URL"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		RedisDB:           v.GetInt("REDIS_DB"),
		NATSURL:           v.GetString("NATS_URL"),
		Port:              v.GetString("PORT"),
		Bind:              v.GetString("BIND"),
		CORSOrigins:       origins,
		WorkPool:          v.GetString("WORK_POOL"),
		WorkerName:        v.GetString("WORKER_NAME"),
		TaskConcurrency:   v.GetInt("TASK_CONCURRENCY"),
		CatalogueBaseURL:  v.GetString("CATALOGUE_BASE_URL"),
		EnrichmentBaseURL: v.GetString("ENRICHMENT_BASE_URL"),
		RequestTimeout:    v.GetDuration("REQUEST_TIMEOUT"),
		CatalogueRPS:      v.GetFloat64("CATALOGUE_RPS"),
		CatalogueBurst:    v.GetInt("CATALOGUE_BURST"),
		EnrichmentRPS:     v.GetFloat64("ENRICHMENT_RPS"),
		EnrichmentBurst:   v.GetInt("ENRICHMENT_BURST"),
		FeedRebuildBudget: v.GetInt("FEED_REBUILD_BUDGET"),
		FeedBaseURL:       v.GetString("FEED_BASE_URL"),
	}
}
