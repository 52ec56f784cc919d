// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/truecivic/parliament-service/internal/config"
	"github.com/truecivic/parliament-service/internal/handler"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// handleHTTPServer configures and starts the HTTP server. It shuts the server
// down when the context is cancelled.
func handleHTTPServer(ctx context.Context, addr string, cfg config.Config, h *handler.Handler, apiKeys service.APIKeyService, authFailures *ratelimit.Registry, wg *sync.WaitGroup, errc chan error) {
	var root http.Handler = h.Routes(apiKeys, authFailures)

	if len(cfg.CORSOrigins) > 0 {
		root = corsMiddleware(cfg.CORSOrigins)(root)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadHeaderTimeout: time.Second * 60,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			slog.InfoContext(ctx, "HTTP server listening", "addr", addr)
			errc <- srv.ListenAndServe()
		}()

		<-ctx.Done()
		slog.InfoContext(ctx, "shutting down HTTP server", "addr", addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(gracefulShutdownSeconds-5)*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(ctx, "failed to shutdown HTTP server", "error", err)
		}
	}()
}

// corsMiddleware allows the configured origins on browser requests.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && allowed[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, X-Anon-Id")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				w.Header().Set("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
