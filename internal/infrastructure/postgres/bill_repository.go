// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// BillRepository implements port.BillRepository over Postgres.
type BillRepository struct {
	client *Client
}

// NewBillRepository creates a bill repository over the client.
func NewBillRepository(client *Client) *BillRepository {
	return &BillRepository{client: client}
}

const billColumns = `id, jurisdiction, parliament, session, number,
	title_en, title_fr, short_title_en, short_title_fr,
	sponsor_politician_id, introduced_date, status,
	royal_assent_date, royal_assent_chapter, summary, subject_tags,
	source_primary, source_enrichment, last_fetched_at, last_enriched_at,
	created_at, updated_at`

func scanBill(scanner interface{ Scan(...any) error }, extra ...any) (*model.Bill, error) {
	var b model.Bill
	var tags pq.StringArray

	dest := []any{
		&b.ID, &b.Key.Jurisdiction, &b.Key.Parliament, &b.Key.Session, &b.Key.Number,
		&b.Title.EN, &b.Title.FR, &b.ShortTitle.EN, &b.ShortTitle.FR,
		&b.SponsorPoliticianID, &b.IntroducedDate, &b.Status,
		&b.RoyalAssentDate, &b.RoyalAssentChapter, &b.Summary, &tags,
		&b.SourcePrimary, &b.SourceEnrichment, &b.LastFetchedAt, &b.LastEnrichedAt,
		&b.CreatedAt, &b.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	b.SubjectTags = []string(tags)
	if len(b.SubjectTags) == 0 {
		b.SubjectTags = nil
	}
	return &b, nil
}

// GetByNaturalKey returns the bill for the key.
func (r *BillRepository) GetByNaturalKey(ctx context.Context, key model.BillKey) (*model.Bill, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE jurisdiction = $1 AND parliament = $2 AND session = $3 AND number = $4`,
		key.Jurisdiction, key.Parliament, key.Session, key.Number)

	bill, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("bill not found: " + key.String())
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to query bill", err)
	}
	return bill, nil
}

// UpsertMany inserts or updates bills with one multi-row statement. The
// conflict update is guarded by IS DISTINCT FROM over the content columns, so
// an identical re-upsert rewrites nothing and updated_at stands.
func (r *BillRepository) UpsertMany(ctx context.Context, bills []model.Bill) (model.UpsertResult, error) {
	if len(bills) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(bills) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 19
	placeholders := make([]string, 0, len(bills))
	args := make([]any, 0, len(bills)*cols)
	for i, b := range bills {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		var embedding any
		if len(b.Embedding) > 0 {
			embedding = pgvector.NewVector(b.Embedding)
		}
		args = append(args,
			b.Key.Jurisdiction, b.Key.Parliament, b.Key.Session, b.Key.Number,
			b.Title.EN, b.Title.FR, b.ShortTitle.EN, b.ShortTitle.FR,
			b.SponsorPoliticianID, b.IntroducedDate, b.Status,
			b.RoyalAssentDate, b.RoyalAssentChapter, b.Summary,
			pq.Array(b.SubjectTags),
			b.SourcePrimary, b.SourceEnrichment,
			b.LastFetchedAt, embedding,
		)
	}

	query := `
		INSERT INTO bills (
			jurisdiction, parliament, session, number,
			title_en, title_fr, short_title_en, short_title_fr,
			sponsor_politician_id, introduced_date, status,
			royal_assent_date, royal_assent_chapter, summary, subject_tags,
			source_primary, source_enrichment, last_fetched_at, embedding
		) VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (jurisdiction, parliament, session, number) DO UPDATE SET
			title_en = EXCLUDED.title_en,
			title_fr = EXCLUDED.title_fr,
			short_title_en = EXCLUDED.short_title_en,
			short_title_fr = EXCLUDED.short_title_fr,
			sponsor_politician_id = EXCLUDED.sponsor_politician_id,
			introduced_date = EXCLUDED.introduced_date,
			status = EXCLUDED.status,
			royal_assent_date = EXCLUDED.royal_assent_date,
			royal_assent_chapter = EXCLUDED.royal_assent_chapter,
			summary = EXCLUDED.summary,
			subject_tags = EXCLUDED.subject_tags,
			source_primary = EXCLUDED.source_primary,
			source_enrichment = EXCLUDED.source_enrichment,
			last_fetched_at = EXCLUDED.last_fetched_at,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
		WHERE (bills.title_en, bills.title_fr, bills.short_title_en, bills.short_title_fr,
			bills.sponsor_politician_id, bills.introduced_date, bills.status,
			bills.royal_assent_date, bills.royal_assent_chapter, bills.summary,
			bills.subject_tags, bills.source_primary, bills.source_enrichment)
			IS DISTINCT FROM
			(EXCLUDED.title_en, EXCLUDED.title_fr, EXCLUDED.short_title_en, EXCLUDED.short_title_fr,
			EXCLUDED.sponsor_politician_id, EXCLUDED.introduced_date, EXCLUDED.status,
			EXCLUDED.royal_assent_date, EXCLUDED.royal_assent_chapter, EXCLUDED.summary,
			EXCLUDED.subject_tags, EXCLUDED.source_primary, EXCLUDED.source_enrichment)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("bill upsert failed", err)
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var inserted bool
			if err := rows.Scan(&inserted); err != nil {
				return errs.NewUnexpected("failed to scan upsert result", err)
			}
			if inserted {
				result.Created++
			} else {
				result.Updated++
			}
		}
		return rows.Err()
	})
	if err != nil {
		return model.UpsertResult{}, err
	}
	result.Unchanged = len(bills) - result.Created - result.Updated
	return result, nil
}

func billFilterClause(filter model.BillFilter, args *[]any) string {
	var clauses []string
	add := func(clause string, value any) {
		*args = append(*args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(*args)))
	}

	if filter.Jurisdiction != "" {
		add("jurisdiction = $%d", filter.Jurisdiction)
	}
	if filter.Parliament != nil {
		add("parliament = $%d", *filter.Parliament)
	}
	if filter.Session != nil {
		add("session = $%d", *filter.Session)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.Tag != nil {
		add("$%d = ANY(subject_tags)", *filter.Tag)
	}
	if filter.SponsorID != nil {
		add("sponsor_politician_id = $%d", *filter.SponsorID)
	}
	if len(filter.ExcludeIDs) > 0 {
		add("NOT (id = ANY($%d))", pq.Array(filter.ExcludeIDs))
	}

	if len(clauses) == 0 {
		return "TRUE"
	}
	return strings.Join(clauses, " AND ")
}

// GetByFilter lists bills sorted by introduced date descending, natural key
// ascending as tiebreak.
func (r *BillRepository) GetByFilter(ctx context.Context, filter model.BillFilter, page paging.Params) ([]model.Bill, int, error) {
	var args []any
	where := billFilterClause(filter, &args)

	countQuery := `SELECT COUNT(*) FROM bills WHERE ` + where
	var total int
	if err := r.client.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count bills", err)
	}

	if page.Limit == 0 {
		return []model.Bill{}, total, nil
	}

	// The sort column comes from a fixed whitelist, never from raw input.
	column := "introduced_date"
	switch filter.Sort {
	case "updated_at":
		column = "updated_at"
	case "number":
		column = "number"
	}
	direction := "DESC"
	if filter.Order == "asc" {
		direction = "ASC"
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT `+billColumns+`
		FROM bills
		WHERE `+where+`
		ORDER BY `+column+` `+direction+` NULLS LAST, parliament, session, number
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list bills", err)
	}
	defer func() { _ = rows.Close() }()

	bills := []model.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan bill", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate bills", err)
	}
	return bills, total, nil
}

// GetByIDs returns the bills for the given internal IDs, introduced date
// descending.
func (r *BillRepository) GetByIDs(ctx context.Context, ids []int64) ([]model.Bill, error) {
	if len(ids) == 0 {
		return []model.Bill{}, nil
	}

	rows, err := r.client.db.QueryContext(ctx, `
		SELECT `+billColumns+`
		FROM bills
		WHERE id = ANY($1)
		ORDER BY introduced_date DESC NULLS LAST, parliament, session, number`,
		pq.Array(ids))
	if err != nil {
		return nil, errs.NewUnexpected("failed to load bills by id", err)
	}
	defer func() { _ = rows.Close() }()

	bills := []model.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, errs.NewUnexpected("failed to scan bill", err)
		}
		bills = append(bills, *bill)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewUnexpected("failed to iterate bills", err)
	}
	return bills, nil
}

// LatestUpdatedAt returns MAX(updated_at) as unix seconds for the scope.
func (r *BillRepository) LatestUpdatedAt(ctx context.Context, filter model.BillFilter) (int64, error) {
	var args []any
	where := billFilterClause(filter, &args)

	var latest sql.NullTime
	err := r.client.db.QueryRowContext(ctx,
		`SELECT MAX(updated_at) FROM bills WHERE `+where, args...).Scan(&latest)
	if err != nil {
		return 0, errs.NewUnexpected("failed to read latest bill update", err)
	}
	if !latest.Valid {
		return 0, nil
	}
	return latest.Time.Unix(), nil
}

// SearchByContent ranks bills by the store's native full-text rank,
// normalized per result set, blended with cosine similarity where embeddings
// exist on both sides.
func (r *BillRepository) SearchByContent(ctx context.Context, query string, queryEmbedding []float32, filter model.BillFilter, page paging.Params) ([]model.BillSearchHit, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, errs.NewValidation("search query must not be empty")
	}

	args := []any{query}
	where := billFilterClause(filter, &args)

	var embeddingArg any
	if len(queryEmbedding) > 0 {
		embeddingArg = pgvector.NewVector(queryEmbedding)
	}
	args = append(args, embeddingArg)
	embeddingIdx := len(args)

	args = append(args, page.Limit, page.Offset)
	sqlQuery := fmt.Sprintf(`
		WITH matched AS (
			SELECT `+billColumns+`,
				ts_rank(search_tsv, plainto_tsquery('english', $1)) AS kw,
				CASE WHEN embedding IS NOT NULL AND $%d::vector IS NOT NULL
					THEN 1 - (embedding <=> $%d::vector)
				END AS sim
			FROM bills
			WHERE search_tsv @@ plainto_tsquery('english', $1) AND `+where+`
		), scored AS (
			SELECT *, kw / NULLIF(MAX(kw) OVER (), 0) AS kw_normalized
			FROM matched
		)
		SELECT *,
			CASE WHEN sim IS NULL THEN COALESCE(kw_normalized, 0)
				ELSE %.1f * COALESCE(kw_normalized, 0) + %.1f * sim
			END AS score,
			COUNT(*) OVER () AS total
		FROM scored
		ORDER BY score DESC, parliament, session, number
		LIMIT $%d OFFSET $%d`,
		embeddingIdx, embeddingIdx,
		model.HybridWeightKeyword, model.HybridWeightVector,
		len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("bill search failed", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []model.BillSearchHit{}
	total := 0
	for rows.Next() {
		var kw, kwNormalized sql.NullFloat64
		var sim sql.NullFloat64
		var score float64
		bill, err := scanBill(rows, &kw, &sim, &kwNormalized, &score, &total)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan search hit", err)
		}

		hit := model.BillSearchHit{
			Bill:         *bill,
			KeywordScore: kwNormalized.Float64,
			Score:        score,
		}
		if sim.Valid {
			hit.SimilarityScore = sim.Float64
		}
		if bill.Summary != nil {
			hit.Snippet = model.Snippet(*bill.Summary, query, 60)
		} else if bill.Title.EN != nil {
			hit.Snippet = model.Snippet(*bill.Title.EN, query, 60)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate search hits", err)
	}
	return hits, total, nil
}
