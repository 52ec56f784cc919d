// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package log configures the process-wide slog logger and lets request-scoped
// attributes (request IDs, run IDs) ride the context into every log line.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type ctxKey struct{}

// contextHandler injects attributes stored in the context into every record.
type contextHandler struct {
	slog.Handler
}

// Handle adds the context attributes to the record before delegating.
func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs preserves the context-awareness of derived handlers.
func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup preserves the context-awareness of derived handlers.
func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

// AppendCtx returns a context carrying the given attribute in addition to any
// attributes already present.
func AppendCtx(ctx context.Context, attr slog.Attr) context.Context {
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(attrs)+1)
	merged = append(merged, attrs...)
	merged = append(merged, attr)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// InitStructureLogConfig installs the default JSON logger. The level is taken
// from LOG_LEVEL (debug, info, warn, error; default info) and the format from
// LOG_FORMAT (json or text; default json).
func InitStructureLogConfig() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(contextHandler{Handler: handler}))
}
