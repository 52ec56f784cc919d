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

// PoliticianRepository implements port.PoliticianRepository over Postgres.
type PoliticianRepository struct {
	client *Client
}

// NewPoliticianRepository creates a politician repository over the client.
func NewPoliticianRepository(client *Client) *PoliticianRepository {
	return &PoliticianRepository{client: client}
}

const politicianColumns = `id, jurisdiction, politician_id, name, given_name, family_name,
	current_party, current_riding, photo_url, source_url, memberships,
	created_at, updated_at`

func scanPolitician(scanner interface{ Scan(...any) error }) (*model.Politician, error) {
	var p model.Politician
	var memberships []byte
	err := scanner.Scan(
		&p.ID, &p.Key.Jurisdiction, &p.Key.PoliticianID,
		&p.Name, &p.GivenName, &p.FamilyName,
		&p.CurrentParty, &p.CurrentRiding, &p.PhotoURL, &p.SourceURL, &memberships,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(memberships) > 0 {
		p.Memberships = memberships
	}
	return &p, nil
}

// GetByNaturalKey returns the politician for the key.
func (r *PoliticianRepository) GetByNaturalKey(ctx context.Context, key model.PoliticianKey) (*model.Politician, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT `+politicianColumns+`
		FROM politicians
		WHERE jurisdiction = $1 AND politician_id = $2`,
		key.Jurisdiction, key.PoliticianID)

	politician, err := scanPolitician(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("politician not found: " + key.PoliticianID)
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to query politician", err)
	}
	return politician, nil
}

// UpsertMany inserts or updates politicians with one multi-row statement.
func (r *PoliticianRepository) UpsertMany(ctx context.Context, politicians []model.Politician) (model.UpsertResult, error) {
	if len(politicians) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(politicians) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 10
	placeholders := make([]string, 0, len(politicians))
	args := make([]any, 0, len(politicians)*cols)
	for i, p := range politicians {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		var memberships any
		if len(p.Memberships) > 0 {
			memberships = []byte(p.Memberships)
		}
		args = append(args,
			p.Key.Jurisdiction, p.Key.PoliticianID,
			p.Name, p.GivenName, p.FamilyName,
			p.CurrentParty, p.CurrentRiding, p.PhotoURL, p.SourceURL,
			memberships,
		)
	}

	query := `
		INSERT INTO politicians (
			jurisdiction, politician_id, name, given_name, family_name,
			current_party, current_riding, photo_url, source_url, memberships
		) VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (jurisdiction, politician_id) DO UPDATE SET
			name = EXCLUDED.name,
			given_name = EXCLUDED.given_name,
			family_name = EXCLUDED.family_name,
			current_party = EXCLUDED.current_party,
			current_riding = EXCLUDED.current_riding,
			photo_url = EXCLUDED.photo_url,
			source_url = EXCLUDED.source_url,
			memberships = EXCLUDED.memberships,
			updated_at = NOW()
		WHERE (politicians.name, politicians.given_name, politicians.family_name,
			politicians.current_party, politicians.current_riding,
			politicians.photo_url, politicians.source_url, politicians.memberships)
			IS DISTINCT FROM
			(EXCLUDED.name, EXCLUDED.given_name, EXCLUDED.family_name,
			EXCLUDED.current_party, EXCLUDED.current_riding,
			EXCLUDED.photo_url, EXCLUDED.source_url, EXCLUDED.memberships)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("politician upsert failed", err)
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
	result.Unchanged = len(politicians) - result.Created - result.Updated
	return result, nil
}

// GetByFilter lists politicians sorted by name ascending.
func (r *PoliticianRepository) GetByFilter(ctx context.Context, filter model.PoliticianFilter, page paging.Params) ([]model.Politician, int, error) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Jurisdiction != "" {
		add("jurisdiction = $%d", filter.Jurisdiction)
	}
	if filter.Party != nil {
		add("current_party = $%d", *filter.Party)
	}
	if filter.Riding != nil {
		add("current_riding = $%d", *filter.Riding)
	}
	if filter.CurrentOnly {
		clauses = append(clauses, "current_riding IS NOT NULL")
	}

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM politicians WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count politicians", err)
	}

	if page.Limit == 0 {
		return []model.Politician{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT `+politicianColumns+`
		FROM politicians
		WHERE `+where+`
		ORDER BY name, politician_id
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list politicians", err)
	}
	defer func() { _ = rows.Close() }()

	politicians := []model.Politician{}
	for rows.Next() {
		p, err := scanPolitician(rows)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan politician", err)
		}
		politicians = append(politicians, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate politicians", err)
	}
	return politicians, total, nil
}
