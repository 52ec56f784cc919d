// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package postgres implements the repository ports over PostgreSQL. Upserts
// are single multi-row INSERT ... ON CONFLICT statements guarded by IS
// DISTINCT FROM so identical re-ingests touch nothing.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	// Postgres driver registration.
	_ "github.com/lib/pq"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// Config holds the connection settings for the store.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Client wraps the SQL connection pool shared by the repositories.
type Client struct {
	db *sql.DB
}

// NewClient opens the pool and verifies connectivity.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	if config.DSN == "" {
		return nil, errs.NewValidation("database DSN is required")
	}

	db, err := sql.Open("postgres", config.DSN)
	if err != nil {
		return nil, errs.NewServiceUnavailable("failed to open database", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.NewServiceUnavailable("database unreachable", err)
	}

	slog.InfoContext(ctx, "connected to postgres",
		"max_open_conns", config.MaxOpenConns,
	)

	return &Client{db: db}, nil
}

// NewClientFromDB wraps an existing handle; tests use it with sqlmock.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB exposes the underlying pool for the migration runner.
func (c *Client) DB() *sql.DB {
	return c.db
}

// IsReady implements port.ReadinessChecker.
func (c *Client) IsReady(ctx context.Context) error {
	if c.db == nil {
		return errs.NewServiceUnavailable("database client is not initialized")
	}
	if err := c.db.PingContext(ctx); err != nil {
		return errs.NewServiceUnavailable("database unreachable", err)
	}
	return nil
}

// Close releases the pool.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// inTx runs fn inside one transaction, rolling back on error.
func (c *Client) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.NewServiceUnavailable("failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errs.NewUnexpected("failed to commit transaction", err)
	}
	return nil
}
