// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/truecivic/parliament-service/internal/config"
	logging "github.com/truecivic/parliament-service/pkg/log"
)

const (
	// gracefulShutdownSeconds should be lower than the pod or liveness
	// probe's terminationGracePeriodSeconds.
	gracefulShutdownSeconds = 25
)

func init() {
	logging.InitStructureLogConfig()
}

func main() {
	var (
		port = flag.String("p", "", "listen port (overrides PORT)")
		bind = flag.String("bind", "", "interface to bind on (overrides BIND)")
	)
	flag.Usage = func() {
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse()

	ctx := context.Background()
	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}
	if *bind != "" {
		cfg.Bind = *bind
	}

	slog.InfoContext(ctx, "starting parliament API",
		"bind", cfg.Bind,
		"http-port", cfg.Port,
		"graceful-shutdown-seconds", gracefulShutdownSeconds,
	)

	// Assemble the infrastructure and delivery layer.
	repos := buildRepositories(ctx, cfg)
	cache := buildCache(ctx, cfg)
	h, apiKeys, authFailures := buildHandler(ctx, cfg, repos, cache)

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error)

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)

	addr := ":" + cfg.Port
	if cfg.Bind != "*" && cfg.Bind != "" {
		addr = cfg.Bind + ":" + cfg.Port
	}

	handleHTTPServer(ctx, addr, cfg, h, apiKeys, authFailures, &wg, errc)

	// Flush buffered API-key usage counters on a fixed cadence.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				apiKeys.FlushUsage(context.Background())
				return
			case <-ticker.C:
				apiKeys.FlushUsage(ctx)
			}
		}
	}()

	slog.InfoContext(ctx, "received shutdown signal, stopping servers",
		"signal", <-errc,
	)

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), gracefulShutdownSeconds*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.InfoContext(ctx, "graceful shutdown completed")
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "graceful shutdown timed out")
	}

	slog.InfoContext(ctx, "exited")
}
