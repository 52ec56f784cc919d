// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// DebateRepository implements port.DebateRepository over Postgres.
type DebateRepository struct {
	client *Client
}

// NewDebateRepository creates a debate repository over the client.
func NewDebateRepository(client *Client) *DebateRepository {
	return &DebateRepository{client: client}
}

const debateColumns = `id, jurisdiction, parliament, session, number,
	date, chamber, debate_type, topic_en, topic_fr, created_at, updated_at`

func scanDebate(scanner interface{ Scan(...any) error }) (*model.Debate, error) {
	var d model.Debate
	err := scanner.Scan(
		&d.ID, &d.Key.Jurisdiction, &d.Key.Parliament, &d.Key.Session, &d.Key.Number,
		&d.Date, &d.Chamber, &d.DebateType, &d.Topic.EN, &d.Topic.FR,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByNaturalKey returns the debate for the key.
func (r *DebateRepository) GetByNaturalKey(ctx context.Context, key model.DebateKey) (*model.Debate, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT `+debateColumns+`
		FROM debates
		WHERE jurisdiction = $1 AND parliament = $2 AND session = $3 AND number = $4`,
		key.Jurisdiction, key.Parliament, key.Session, key.Number)

	debate, err := scanDebate(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("debate not found: " + key.NaturalID())
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to query debate", err)
	}
	return debate, nil
}

// UpsertMany inserts or updates debates with one multi-row statement.
func (r *DebateRepository) UpsertMany(ctx context.Context, debates []model.Debate) (model.UpsertResult, error) {
	if len(debates) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(debates) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 9
	placeholders := make([]string, 0, len(debates))
	args := make([]any, 0, len(debates)*cols)
	for i, d := range debates {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			d.Key.Jurisdiction, d.Key.Parliament, d.Key.Session, d.Key.Number,
			d.Date, d.Chamber, d.DebateType, d.Topic.EN, d.Topic.FR,
		)
	}

	query := `
		INSERT INTO debates (
			jurisdiction, parliament, session, number,
			date, chamber, debate_type, topic_en, topic_fr
		) VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (jurisdiction, parliament, session, number) DO UPDATE SET
			date = EXCLUDED.date,
			chamber = EXCLUDED.chamber,
			debate_type = EXCLUDED.debate_type,
			topic_en = EXCLUDED.topic_en,
			topic_fr = EXCLUDED.topic_fr,
			updated_at = NOW()
		WHERE (debates.date, debates.chamber, debates.debate_type,
			debates.topic_en, debates.topic_fr)
			IS DISTINCT FROM
			(EXCLUDED.date, EXCLUDED.chamber, EXCLUDED.debate_type,
			EXCLUDED.topic_en, EXCLUDED.topic_fr)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("debate upsert failed", err)
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
	result.Unchanged = len(debates) - result.Created - result.Updated
	return result, nil
}

// GetByFilter lists debates sorted by date descending, natural key ascending.
func (r *DebateRepository) GetByFilter(ctx context.Context, filter model.DebateFilter, page paging.Params) ([]model.Debate, int, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
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

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM debates WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count debates", err)
	}

	if page.Limit == 0 {
		return []model.Debate{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT `+debateColumns+`
		FROM debates
		WHERE `+where+`
		ORDER BY date DESC, parliament, session, number
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list debates", err)
	}
	defer func() { _ = rows.Close() }()

	debates := []model.Debate{}
	for rows.Next() {
		d, err := scanDebate(rows)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan debate", err)
		}
		debates = append(debates, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate debates", err)
	}
	return debates, total, nil
}

// UpsertSpeeches writes a debate's speeches in one transaction. A speaker
// reference only sticks when the politician exists.
func (r *DebateRepository) UpsertSpeeches(ctx context.Context, debateNaturalID string, speeches []model.Speech) (model.UpsertResult, error) {
	if len(speeches) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(speeches) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 9
	placeholders := make([]string, 0, len(speeches))
	args := make([]any, 0, len(speeches)*cols)
	for i, s := range speeches {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			debateNaturalID, s.Sequence, s.PoliticianID, s.SpeakerName,
			s.Role, s.Language, s.Text.EN, s.Text.FR, s.Time,
		)
	}

	query := `
		INSERT INTO speeches (
			debate_natural_id, sequence, politician_id, speaker_name,
			role, language, text_en, text_fr, spoke_at
		)
		SELECT v.debate_natural_id, v.sequence::int,
			(SELECT p.politician_id FROM politicians p WHERE p.politician_id = v.politician_id),
			v.speaker_name, v.role, v.language, v.text_en, v.text_fr, v.spoke_at::timestamptz
		FROM (VALUES ` + strings.Join(placeholders, ", ") + `) AS v (
			debate_natural_id, sequence, politician_id, speaker_name,
			role, language, text_en, text_fr, spoke_at
		)
		ON CONFLICT (debate_natural_id, sequence) DO UPDATE SET
			politician_id = EXCLUDED.politician_id,
			speaker_name = EXCLUDED.speaker_name,
			role = EXCLUDED.role,
			language = EXCLUDED.language,
			text_en = EXCLUDED.text_en,
			text_fr = EXCLUDED.text_fr,
			spoke_at = EXCLUDED.spoke_at,
			updated_at = NOW()
		WHERE (speeches.politician_id, speeches.speaker_name, speeches.role,
			speeches.language, speeches.text_en, speeches.text_fr, speeches.spoke_at)
			IS DISTINCT FROM
			(EXCLUDED.politician_id, EXCLUDED.speaker_name, EXCLUDED.role,
			EXCLUDED.language, EXCLUDED.text_en, EXCLUDED.text_fr, EXCLUDED.spoke_at)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("speech upsert failed", err)
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
	result.Unchanged = len(speeches) - result.Created - result.Updated
	return result, nil
}

const speechColumns = `id, debate_natural_id, sequence, politician_id, speaker_name,
	role, language, text_en, text_fr, spoke_at, created_at, updated_at`

func scanSpeech(scanner interface{ Scan(...any) error }, extra ...any) (*model.Speech, error) {
	var s model.Speech
	dest := []any{
		&s.ID, &s.DebateNaturalID, &s.Sequence, &s.PoliticianID, &s.SpeakerName,
		&s.Role, &s.Language, &s.Text.EN, &s.Text.FR, &s.Time,
		&s.CreatedAt, &s.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSpeeches lists a debate's speeches sorted by sequence ascending.
func (r *DebateRepository) GetSpeeches(ctx context.Context, filter model.SpeechFilter, page paging.Params) ([]model.Speech, int, error) {
	args := []any{filter.DebateNaturalID}
	where := "debate_natural_id = $1"
	if filter.PoliticianID != nil {
		args = append(args, *filter.PoliticianID)
		where += fmt.Sprintf(" AND politician_id = $%d", len(args))
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM speeches WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count speeches", err)
	}

	if page.Limit == 0 {
		return []model.Speech{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT `+speechColumns+`
		FROM speeches
		WHERE `+where+`
		ORDER BY sequence
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list speeches", err)
	}
	defer func() { _ = rows.Close() }()

	speeches := []model.Speech{}
	for rows.Next() {
		s, err := scanSpeech(rows)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan speech", err)
		}
		speeches = append(speeches, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate speeches", err)
	}
	return speeches, total, nil
}

// SearchByContent ranks speeches by full-text rank over debate topics and
// speech text.
func (r *DebateRepository) SearchByContent(ctx context.Context, query string, jurisdiction string, page paging.Params) ([]model.SpeechSearchHit, int, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, errs.NewValidation("search query must not be empty")
	}

	args := []any{query, jurisdiction, page.Limit, page.Offset}
	sqlQuery := `
		SELECT s.id, s.debate_natural_id, s.sequence, s.politician_id, s.speaker_name,
			s.role, s.language, s.text_en, s.text_fr, s.spoke_at, s.created_at, s.updated_at,
			ts_rank(s.search_tsv, plainto_tsquery('english', $1)) AS rank,
			COUNT(*) OVER () AS total
		FROM speeches s
		JOIN debates d ON d.jurisdiction = $2
			AND (d.parliament::text || '-' || d.session::text || '-' || d.number::text) = s.debate_natural_id
		WHERE s.search_tsv @@ plainto_tsquery('english', $1)
		ORDER BY rank DESC, s.debate_natural_id, s.sequence
		LIMIT $3 OFFSET $4`

	rows, err := r.client.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("speech search failed", err)
	}
	defer func() { _ = rows.Close() }()

	hits := []model.SpeechSearchHit{}
	total := 0
	maxRank := 0.0
	for rows.Next() {
		var rank float64
		speech, err := scanSpeech(rows, &rank, &total)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan speech hit", err)
		}
		if rank > maxRank {
			maxRank = rank
		}
		hit := model.SpeechSearchHit{Speech: *speech, Score: rank}
		if speech.Text.EN != nil {
			hit.Snippet = model.Snippet(*speech.Text.EN, query, 60)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate speech hits", err)
	}

	// Normalize scores to [0,1] within the page.
	if maxRank > 0 {
		for i := range hits {
			hits[i].Score /= maxRank
		}
	}
	return hits, total, nil
}
