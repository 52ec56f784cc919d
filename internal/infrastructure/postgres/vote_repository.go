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

// VoteRepository implements port.VoteRepository over Postgres.
type VoteRepository struct {
	client *Client
}

// NewVoteRepository creates a vote repository over the client.
func NewVoteRepository(client *Client) *VoteRepository {
	return &VoteRepository{client: client}
}

const voteColumns = `id, jurisdiction, parliament, session, number, date, chamber,
	description_en, description_fr, result, yeas, nays, abstentions,
	bill_number, bill_id, created_at, updated_at`

func scanVote(scanner interface{ Scan(...any) error }) (*model.Vote, error) {
	var v model.Vote
	var result string
	err := scanner.Scan(
		&v.ID, &v.Key.Jurisdiction, &v.Key.Parliament, &v.Key.Session, &v.Key.Number,
		&v.Date, &v.Chamber, &v.Description.EN, &v.Description.FR, &result,
		&v.Yeas, &v.Nays, &v.Abstentions,
		&v.BillNumber, &v.BillID, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Result = model.VoteResult(result)
	return &v, nil
}

// GetByNaturalKey returns the vote for the key.
func (r *VoteRepository) GetByNaturalKey(ctx context.Context, key model.VoteKey) (*model.Vote, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT `+voteColumns+`
		FROM votes
		WHERE jurisdiction = $1 AND parliament = $2 AND session = $3 AND number = $4`,
		key.Jurisdiction, key.Parliament, key.Session, key.Number)

	vote, err := scanVote(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("vote not found: " + key.String())
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to query vote", err)
	}
	return vote, nil
}

// UpsertMany inserts or updates votes with one multi-row statement. The bill
// reference is resolved in the statement itself: it lands as the matching
// bill's ID or null, never as a dangling value.
func (r *VoteRepository) UpsertMany(ctx context.Context, votes []model.Vote) (model.UpsertResult, error) {
	if len(votes) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(votes) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 14
	placeholders := make([]string, 0, len(votes))
	args := make([]any, 0, len(votes)*cols)
	for i, v := range votes {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			v.Key.Jurisdiction, v.Key.Parliament, v.Key.Session, v.Key.Number,
			v.Date, v.Chamber, v.Description.EN, v.Description.FR,
			string(v.Result), v.Yeas, v.Nays, v.Abstentions,
			v.BillNumber, v.BillNumber,
		)
	}

	query := `
		INSERT INTO votes (
			jurisdiction, parliament, session, number, date, chamber,
			description_en, description_fr, result, yeas, nays, abstentions,
			bill_number, bill_id
		)
		SELECT v.jurisdiction, v.parliament::int, v.session::int, v.number::int,
			v.date::date, v.chamber, v.description_en, v.description_fr,
			v.result, v.yeas::int, v.nays::int, v.abstentions::int,
			v.bill_number,
			(SELECT b.id FROM bills b
				WHERE b.jurisdiction = v.jurisdiction
				AND b.parliament = v.parliament::int
				AND b.session = v.session::int
				AND b.number = v.bill_lookup)
		FROM (VALUES ` + strings.Join(placeholders, ", ") + `) AS v (
			jurisdiction, parliament, session, number, date, chamber,
			description_en, description_fr, result, yeas, nays, abstentions,
			bill_number, bill_lookup
		)
		ON CONFLICT (jurisdiction, parliament, session, number) DO UPDATE SET
			date = EXCLUDED.date,
			chamber = EXCLUDED.chamber,
			description_en = EXCLUDED.description_en,
			description_fr = EXCLUDED.description_fr,
			result = EXCLUDED.result,
			yeas = EXCLUDED.yeas,
			nays = EXCLUDED.nays,
			abstentions = EXCLUDED.abstentions,
			bill_number = EXCLUDED.bill_number,
			bill_id = EXCLUDED.bill_id,
			updated_at = NOW()
		WHERE (votes.date, votes.chamber, votes.description_en, votes.description_fr,
			votes.result, votes.yeas, votes.nays, votes.abstentions, votes.bill_number)
			IS DISTINCT FROM
			(EXCLUDED.date, EXCLUDED.chamber, EXCLUDED.description_en, EXCLUDED.description_fr,
			EXCLUDED.result, EXCLUDED.yeas, EXCLUDED.nays, EXCLUDED.abstentions, EXCLUDED.bill_number)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("vote upsert failed", err)
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
	result.Unchanged = len(votes) - result.Created - result.Updated
	return result, nil
}

// GetByFilter lists votes sorted by date descending, natural key ascending.
func (r *VoteRepository) GetByFilter(ctx context.Context, filter model.VoteFilter, page paging.Params) ([]model.Vote, int, error) {
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
	if filter.BillID != nil {
		add("bill_id = $%d", *filter.BillID)
	}
	if filter.Result != nil {
		add("result = $%d", string(*filter.Result))
	}

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count votes", err)
	}

	if page.Limit == 0 {
		return []model.Vote{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT `+voteColumns+`
		FROM votes
		WHERE `+where+`
		ORDER BY date DESC, parliament, session, number
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list votes", err)
	}
	defer func() { _ = rows.Close() }()

	votes := []model.Vote{}
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan vote", err)
		}
		votes = append(votes, *vote)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate votes", err)
	}
	return votes, total, nil
}

// UpsertRecords writes a vote's ballots in one transaction.
func (r *VoteRepository) UpsertRecords(ctx context.Context, voteNaturalID string, records []model.VoteRecord) (model.UpsertResult, error) {
	if len(records) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(records) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 3
	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*cols)
	for i, record := range records {
		base := i * cols
		placeholders = append(placeholders,
			fmt.Sprintf("($%d, $%d, $%d)", base+1, base+2, base+3))
		args = append(args, voteNaturalID, record.PoliticianID, string(record.Position))
	}

	query := `
		INSERT INTO vote_records (vote_natural_id, politician_id, position)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (vote_natural_id, politician_id) DO UPDATE SET
			position = EXCLUDED.position,
			updated_at = NOW()
		WHERE vote_records.position IS DISTINCT FROM EXCLUDED.position
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("vote record upsert failed", err)
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
	result.Unchanged = len(records) - result.Created - result.Updated
	return result, nil
}

// GetRecords lists a vote's ballots sorted by politician ID ascending.
func (r *VoteRepository) GetRecords(ctx context.Context, voteNaturalID string, position *model.BallotPosition, page paging.Params) ([]model.VoteRecord, int, error) {
	args := []any{voteNaturalID}
	where := "vote_natural_id = $1"
	if position != nil {
		args = append(args, string(*position))
		where += fmt.Sprintf(" AND position = $%d", len(args))
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vote_records WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count vote records", err)
	}

	if page.Limit == 0 {
		return []model.VoteRecord{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT id, vote_natural_id, politician_id, position, created_at, updated_at
		FROM vote_records
		WHERE `+where+`
		ORDER BY politician_id
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list vote records", err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.VoteRecord{}
	for rows.Next() {
		var rec model.VoteRecord
		var position string
		if err := rows.Scan(&rec.ID, &rec.VoteNaturalID, &rec.PoliticianID, &position,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan vote record", err)
		}
		rec.Position = model.BallotPosition(position)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate vote records", err)
	}
	return records, total, nil
}
