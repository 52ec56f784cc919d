// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/truecivic/parliament-service/internal/config"
	"github.com/truecivic/parliament-service/internal/scheduler"
	logging "github.com/truecivic/parliament-service/pkg/log"
)

const gracefulShutdownSeconds = 30

func init() {
	logging.InitStructureLogConfig()
}

func main() {
	var (
		trigger = flag.String("trigger", "", "enqueue one run of the named deployment and exit")
	)
	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load()

	slog.InfoContext(ctx, "starting ingest worker",
		"worker", cfg.WorkerName,
		"pool", cfg.WorkPool,
		"task-concurrency", cfg.TaskConcurrency,
	)

	ing := buildIngestors(ctx, cfg)
	runStore := buildRunStore(ctx, cfg)
	queue := buildQueue(ctx, cfg)
	resultCache := buildResultCache(ctx, cfg)

	registry := scheduler.NewRegistry()
	registerFlows(registry, ing, cfg.WorkPool)

	enqueuer := scheduler.NewEnqueuer(
		scheduler.WithEnqueuerRegistry(registry),
		scheduler.WithEnqueuerRunStore(runStore),
		scheduler.WithEnqueuerQueue(queue),
	)

	// Ad-hoc backfill: enqueue one run and exit.
	if *trigger != "" {
		if err := enqueuer.Trigger(ctx, *trigger); err != nil {
			log.Fatalf("failed to trigger %s: %v", *trigger, err)
		}
		slog.InfoContext(ctx, "run enqueued, exiting", "deployment", *trigger)
		return
	}

	worker := scheduler.NewWorker(
		scheduler.WorkerConfig{
			Name:            cfg.WorkerName,
			PoolTag:         cfg.WorkPool,
			TaskConcurrency: cfg.TaskConcurrency,
		},
		scheduler.WithRegistry(registry),
		scheduler.WithRunStore(runStore),
		scheduler.WithQueue(queue),
		scheduler.WithResultCache(resultCache),
	)

	errc := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		// A startup probe failure exits without claiming runs.
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := enqueuer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
	}()

	slog.InfoContext(ctx, "shutting down",
		"reason", <-errc,
	)

	// Cancellation is cooperative: in-flight tasks finish, no new dispatch.
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "graceful shutdown completed")
	case <-time.After(gracefulShutdownSeconds * time.Second):
		slog.WarnContext(ctx, "graceful shutdown timed out")
	}

	slog.InfoContext(ctx, "exited")
}
