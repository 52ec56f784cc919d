// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// migration is one versioned schema step. Steps are linearly ordered and
// idempotent on apply: a version already recorded in schema_migrations is
// skipped, so running the migrator at head is a no-op.
type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{1, "core entities", migrateCoreEntities},
	{2, "vote records and speeches", migrateChildTables},
	{3, "fetch logs", migrateFetchLogs},
	{4, "api keys and personalization", migrateAuthTables},
	{5, "scheduler run history", migrateRunHistory},
	{6, "full-text indexes", migrateFullText},
	{7, "bill embeddings", migrateEmbeddings},
}

// Migrate brings the schema to head.
func (c *Client) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return errs.NewUnexpected("failed to create schema_migrations", err)
	}

	applied := make(map[int]bool)
	rows, err := c.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return errs.NewUnexpected("failed to read schema_migrations", err)
	}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			_ = rows.Close()
			return errs.NewUnexpected("failed to scan migration version", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return errs.NewUnexpected("failed to iterate schema_migrations", err)
	}
	if err := rows.Close(); err != nil {
		return errs.NewUnexpected("failed to close schema_migrations rows", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		err := c.inTx(ctx, func(tx *sql.Tx) error {
			if err := m.apply(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`,
				m.version, m.name)
			return err
		})
		if err != nil {
			return errs.NewUnexpected("migration failed: "+m.name, err)
		}

		slog.InfoContext(ctx, "applied migration",
			"version", m.version,
			"name", m.name,
		)
	}

	return nil
}

func migrateCoreEntities(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE bills (
			id                   BIGSERIAL PRIMARY KEY,
			jurisdiction         TEXT NOT NULL,
			parliament           INTEGER NOT NULL,
			session              INTEGER NOT NULL,
			number               TEXT NOT NULL,
			title_en             TEXT,
			title_fr             TEXT,
			short_title_en       TEXT,
			short_title_fr       TEXT,
			sponsor_politician_id TEXT,
			introduced_date      DATE,
			status               TEXT NOT NULL DEFAULT '',
			royal_assent_date    DATE,
			royal_assent_chapter TEXT,
			summary              TEXT,
			subject_tags         TEXT[] NOT NULL DEFAULT '{}',
			source_primary       BOOLEAN NOT NULL DEFAULT FALSE,
			source_enrichment    BOOLEAN NOT NULL DEFAULT FALSE,
			last_fetched_at      TIMESTAMPTZ,
			last_enriched_at     TIMESTAMPTZ,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (jurisdiction, parliament, session, number)
		);
		CREATE INDEX idx_bills_introduced ON bills (jurisdiction, introduced_date DESC);
		CREATE INDEX idx_bills_status ON bills (jurisdiction, status);

		CREATE TABLE politicians (
			id             BIGSERIAL PRIMARY KEY,
			jurisdiction   TEXT NOT NULL,
			politician_id  TEXT NOT NULL,
			name           TEXT NOT NULL,
			given_name     TEXT NOT NULL DEFAULT '',
			family_name    TEXT NOT NULL DEFAULT '',
			current_party  TEXT,
			current_riding TEXT,
			photo_url      TEXT,
			source_url     TEXT,
			memberships    JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (jurisdiction, politician_id)
		);
		CREATE INDEX idx_politicians_name ON politicians (jurisdiction, name);
		CREATE INDEX idx_politicians_party ON politicians (jurisdiction, current_party);

		CREATE TABLE votes (
			id             BIGSERIAL PRIMARY KEY,
			jurisdiction   TEXT NOT NULL,
			parliament     INTEGER NOT NULL,
			session        INTEGER NOT NULL,
			number         INTEGER NOT NULL,
			date           DATE NOT NULL,
			chamber        TEXT NOT NULL DEFAULT '',
			description_en TEXT,
			description_fr TEXT,
			result         TEXT NOT NULL,
			yeas           INTEGER NOT NULL DEFAULT 0,
			nays           INTEGER NOT NULL DEFAULT 0,
			abstentions    INTEGER NOT NULL DEFAULT 0,
			bill_number    TEXT,
			bill_id        BIGINT REFERENCES bills (id),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (jurisdiction, parliament, session, number)
		);
		CREATE INDEX idx_votes_date ON votes (jurisdiction, date DESC);
		CREATE INDEX idx_votes_bill ON votes (bill_id);

		CREATE TABLE committees (
			id           BIGSERIAL PRIMARY KEY,
			jurisdiction TEXT NOT NULL,
			parliament   INTEGER NOT NULL,
			session      INTEGER NOT NULL,
			slug         TEXT NOT NULL,
			name_en      TEXT,
			name_fr      TEXT,
			acronym_en   TEXT,
			acronym_fr   TEXT,
			chamber      TEXT NOT NULL DEFAULT '',
			parent_slug  TEXT,
			source_url   TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (jurisdiction, parliament, session, slug)
		);

		CREATE TABLE debates (
			id           BIGSERIAL PRIMARY KEY,
			jurisdiction TEXT NOT NULL,
			parliament   INTEGER NOT NULL,
			session      INTEGER NOT NULL,
			number       INTEGER NOT NULL,
			date         DATE NOT NULL,
			chamber      TEXT NOT NULL DEFAULT '',
			debate_type  TEXT NOT NULL DEFAULT '',
			topic_en     TEXT,
			topic_fr     TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (jurisdiction, parliament, session, number)
		);
		CREATE INDEX idx_debates_date ON debates (jurisdiction, date DESC)`)
	return err
}

func migrateChildTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE vote_records (
			id              BIGSERIAL PRIMARY KEY,
			vote_natural_id TEXT NOT NULL,
			politician_id   TEXT NOT NULL,
			position        TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (vote_natural_id, politician_id)
		);
		CREATE INDEX idx_vote_records_politician ON vote_records (politician_id);

		CREATE TABLE committee_meetings (
			id             BIGSERIAL PRIMARY KEY,
			committee_slug TEXT NOT NULL,
			parliament     INTEGER NOT NULL,
			session        INTEGER NOT NULL,
			number         INTEGER NOT NULL,
			date           DATE NOT NULL,
			meeting_time   TEXT,
			title_en       TEXT,
			title_fr       TEXT,
			meeting_type   TEXT NOT NULL DEFAULT '',
			room           TEXT,
			witnesses      JSONB,
			documents      JSONB,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (committee_slug, parliament, session, number)
		);
		CREATE INDEX idx_meetings_date ON committee_meetings (committee_slug, date DESC);

		CREATE TABLE speeches (
			id                BIGSERIAL PRIMARY KEY,
			debate_natural_id TEXT NOT NULL,
			sequence          INTEGER NOT NULL,
			politician_id     TEXT,
			speaker_name      TEXT NOT NULL DEFAULT '',
			role              TEXT NOT NULL DEFAULT '',
			language          TEXT NOT NULL DEFAULT '',
			text_en           TEXT,
			text_fr           TEXT,
			spoke_at          TIMESTAMPTZ,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (debate_natural_id, sequence)
		);
		CREATE INDEX idx_speeches_politician ON speeches (politician_id)`)
	return err
}

func migrateFetchLogs(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE fetch_logs (
			id                BIGSERIAL PRIMARY KEY,
			source            TEXT NOT NULL,
			status            TEXT NOT NULL,
			records_attempted INTEGER NOT NULL DEFAULT 0,
			records_succeeded INTEGER NOT NULL DEFAULT 0,
			records_failed    INTEGER NOT NULL DEFAULT 0,
			duration_ms       BIGINT NOT NULL DEFAULT 0,
			parameters        JSONB,
			error_summary     JSONB,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX idx_fetch_logs_source ON fetch_logs (source, created_at DESC)`)
	return err
}

func migrateAuthTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE api_keys (
			id                BIGSERIAL PRIMARY KEY,
			name              TEXT NOT NULL,
			key_hash          TEXT NOT NULL UNIQUE,
			active            BOOLEAN NOT NULL DEFAULT TRUE,
			requests_per_hour INTEGER NOT NULL DEFAULT 1000,
			expires_at        TIMESTAMPTZ,
			last_used_at      TIMESTAMPTZ,
			request_count     BIGINT NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE ignored_bills (
			device_id  TEXT NOT NULL,
			bill_id    BIGINT NOT NULL REFERENCES bills (id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (device_id, bill_id)
		);

		CREATE TABLE feed_tokens (
			token            TEXT PRIMARY KEY,
			device_id        TEXT NOT NULL,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_accessed_at TIMESTAMPTZ,
			access_count     BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX idx_feed_tokens_device ON feed_tokens (device_id)`)
	return err
}

func migrateRunHistory(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		CREATE TABLE flow_runs (
			id           BIGSERIAL PRIMARY KEY,
			run_id       TEXT NOT NULL UNIQUE,
			flow_name    TEXT NOT NULL,
			flow_version INTEGER NOT NULL DEFAULT 1,
			deployment   TEXT NOT NULL DEFAULT '',
			pool_tag     TEXT NOT NULL DEFAULT '',
			parameters   JSONB,
			state        TEXT NOT NULL,
			log_tail     TEXT NOT NULL DEFAULT '',
			result       JSONB,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at   TIMESTAMPTZ,
			finished_at  TIMESTAMPTZ
		);
		CREATE INDEX idx_flow_runs_flow ON flow_runs (flow_name, created_at DESC);
		CREATE INDEX idx_flow_runs_state ON flow_runs (state);

		CREATE TABLE task_runs (
			id          BIGSERIAL PRIMARY KEY,
			run_id      TEXT NOT NULL,
			task_name   TEXT NOT NULL,
			attempt     INTEGER NOT NULL DEFAULT 1,
			state       TEXT NOT NULL,
			cache_key   TEXT,
			cache_hit   BOOLEAN NOT NULL DEFAULT FALSE,
			error       TEXT NOT NULL DEFAULT '',
			result      JSONB,
			started_at  TIMESTAMPTZ,
			finished_at TIMESTAMPTZ
		);
		CREATE INDEX idx_task_runs_run ON task_runs (run_id)`)
	return err
}

func migrateFullText(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		ALTER TABLE bills ADD COLUMN search_tsv tsvector
			GENERATED ALWAYS AS (
				setweight(to_tsvector('english', coalesce(title_en, '')), 'A') ||
				setweight(to_tsvector('english', coalesce(short_title_en, '')), 'A') ||
				setweight(to_tsvector('english', coalesce(summary, '')), 'B')
			) STORED;
		CREATE INDEX idx_bills_search ON bills USING GIN (search_tsv);

		ALTER TABLE speeches ADD COLUMN search_tsv tsvector
			GENERATED ALWAYS AS (
				to_tsvector('english', coalesce(text_en, ''))
			) STORED;
		CREATE INDEX idx_speeches_search ON speeches USING GIN (search_tsv)`)
	return err
}

// migrateEmbeddings prefers the pgvector extension; installs without it get a
// bytea column so the schema still reaches head, with similarity search
// disabled.
func migrateEmbeddings(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `SAVEPOINT before_vector`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		slog.WarnContext(ctx, "pgvector extension unavailable, storing embeddings as bytea",
			"error", err,
		)
		// The failed statement poisoned the transaction; recover to a clean
		// point before the fallback DDL.
		if _, err := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT before_vector`); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `ALTER TABLE bills ADD COLUMN embedding BYTEA`)
		return err
	}

	_, err := tx.ExecContext(ctx, `
		ALTER TABLE bills ADD COLUMN embedding vector(768);
		CREATE INDEX idx_bills_embedding ON bills
			USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`)
	return err
}
