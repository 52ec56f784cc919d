// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// CommitteeRepository implements port.CommitteeRepository over Postgres.
type CommitteeRepository struct {
	client *Client
}

// NewCommitteeRepository creates a committee repository over the client.
func NewCommitteeRepository(client *Client) *CommitteeRepository {
	return &CommitteeRepository{client: client}
}

const committeeColumns = `id, jurisdiction, parliament, session, slug,
	name_en, name_fr, acronym_en, acronym_fr, chamber, parent_slug, source_url,
	created_at, updated_at`

func scanCommittee(scanner interface{ Scan(...any) error }) (*model.Committee, error) {
	var c model.Committee
	err := scanner.Scan(
		&c.ID, &c.Key.Jurisdiction, &c.Key.Parliament, &c.Key.Session, &c.Key.Slug,
		&c.Name.EN, &c.Name.FR, &c.Acronym.EN, &c.Acronym.FR,
		&c.Chamber, &c.ParentSlug, &c.SourceURL,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByNaturalKey returns the committee for the key.
func (r *CommitteeRepository) GetByNaturalKey(ctx context.Context, key model.CommitteeKey) (*model.Committee, error) {
	row := r.client.db.QueryRowContext(ctx, `
		SELECT `+committeeColumns+`
		FROM committees
		WHERE jurisdiction = $1 AND parliament = $2 AND session = $3 AND slug = $4`,
		key.Jurisdiction, key.Parliament, key.Session, key.Slug)

	committee, err := scanCommittee(row)
	if err == sql.ErrNoRows {
		return nil, errs.NewNotFound("committee not found: " + key.NaturalID())
	}
	if err != nil {
		return nil, errs.NewUnexpected("failed to query committee", err)
	}
	return committee, nil
}

// UpsertMany inserts or updates committees with one multi-row statement. A
// parent reference only sticks when the parent row exists in the same
// parliament and session.
func (r *CommitteeRepository) UpsertMany(ctx context.Context, committees []model.Committee) (model.UpsertResult, error) {
	if len(committees) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(committees) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 11
	placeholders := make([]string, 0, len(committees))
	args := make([]any, 0, len(committees)*cols)
	for i, c := range committees {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		args = append(args,
			c.Key.Jurisdiction, c.Key.Parliament, c.Key.Session, c.Key.Slug,
			c.Name.EN, c.Name.FR, c.Acronym.EN, c.Acronym.FR,
			c.Chamber, c.ParentSlug, c.SourceURL,
		)
	}

	query := `
		INSERT INTO committees (
			jurisdiction, parliament, session, slug,
			name_en, name_fr, acronym_en, acronym_fr, chamber, parent_slug, source_url
		)
		SELECT v.jurisdiction, v.parliament::int, v.session::int, v.slug,
			v.name_en, v.name_fr, v.acronym_en, v.acronym_fr, v.chamber,
			(SELECT p.slug FROM committees p
				WHERE p.jurisdiction = v.jurisdiction
				AND p.parliament = v.parliament::int
				AND p.session = v.session::int
				AND p.slug = v.parent_slug),
			v.source_url
		FROM (VALUES ` + strings.Join(placeholders, ", ") + `) AS v (
			jurisdiction, parliament, session, slug,
			name_en, name_fr, acronym_en, acronym_fr, chamber, parent_slug, source_url
		)
		ON CONFLICT (jurisdiction, parliament, session, slug) DO UPDATE SET
			name_en = EXCLUDED.name_en,
			name_fr = EXCLUDED.name_fr,
			acronym_en = EXCLUDED.acronym_en,
			acronym_fr = EXCLUDED.acronym_fr,
			chamber = EXCLUDED.chamber,
			parent_slug = EXCLUDED.parent_slug,
			source_url = EXCLUDED.source_url,
			updated_at = NOW()
		WHERE (committees.name_en, committees.name_fr, committees.acronym_en,
			committees.acronym_fr, committees.chamber, committees.parent_slug,
			committees.source_url)
			IS DISTINCT FROM
			(EXCLUDED.name_en, EXCLUDED.name_fr, EXCLUDED.acronym_en,
			EXCLUDED.acronym_fr, EXCLUDED.chamber, EXCLUDED.parent_slug,
			EXCLUDED.source_url)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("committee upsert failed", err)
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
	result.Unchanged = len(committees) - result.Created - result.Updated
	return result, nil
}

// GetByFilter lists committees sorted by slug ascending.
func (r *CommitteeRepository) GetByFilter(ctx context.Context, filter model.CommitteeFilter, page paging.Params) ([]model.Committee, int, error) {
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
	if filter.Chamber != nil {
		add("chamber = $%d", *filter.Chamber)
	}

	where := "TRUE"
	if len(clauses) > 0 {
		where = strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM committees WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count committees", err)
	}

	if page.Limit == 0 {
		return []model.Committee{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT `+committeeColumns+`
		FROM committees
		WHERE `+where+`
		ORDER BY parliament, session, slug
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list committees", err)
	}
	defer func() { _ = rows.Close() }()

	committees := []model.Committee{}
	for rows.Next() {
		c, err := scanCommittee(rows)
		if err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan committee", err)
		}
		committees = append(committees, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate committees", err)
	}
	return committees, total, nil
}

// UpsertMeetings inserts or overwrites meetings for their natural keys in one
// transaction.
func (r *CommitteeRepository) UpsertMeetings(ctx context.Context, meetings []model.CommitteeMeeting) (model.UpsertResult, error) {
	if len(meetings) == 0 {
		return model.UpsertResult{}, nil
	}
	if len(meetings) > constants.UpsertBatchSize {
		return model.UpsertResult{}, errs.NewValidation("upsert batch exceeds 500 records; slice the input")
	}

	const cols = 12
	placeholders := make([]string, 0, len(meetings))
	args := make([]any, 0, len(meetings)*cols)
	for i, m := range meetings {
		base := i * cols
		marks := make([]string, cols)
		for j := range marks {
			marks[j] = fmt.Sprintf("$%d", base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(marks, ", ")+")")

		witnesses, err := json.Marshal(m.Witnesses)
		if err != nil {
			return model.UpsertResult{}, errs.NewUnexpected("failed to marshal witnesses", err)
		}
		documents, err := json.Marshal(m.Documents)
		if err != nil {
			return model.UpsertResult{}, errs.NewUnexpected("failed to marshal documents", err)
		}

		args = append(args,
			m.CommitteeSlug, m.Parliament, m.Session, m.Number,
			m.Date, m.Time, m.Title.EN, m.Title.FR,
			m.MeetingType, m.Room, witnesses, documents,
		)
	}

	query := `
		INSERT INTO committee_meetings (
			committee_slug, parliament, session, number,
			date, meeting_time, title_en, title_fr,
			meeting_type, room, witnesses, documents
		) VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (committee_slug, parliament, session, number) DO UPDATE SET
			date = EXCLUDED.date,
			meeting_time = EXCLUDED.meeting_time,
			title_en = EXCLUDED.title_en,
			title_fr = EXCLUDED.title_fr,
			meeting_type = EXCLUDED.meeting_type,
			room = EXCLUDED.room,
			witnesses = EXCLUDED.witnesses,
			documents = EXCLUDED.documents,
			updated_at = NOW()
		WHERE (committee_meetings.date, committee_meetings.meeting_time,
			committee_meetings.title_en, committee_meetings.title_fr,
			committee_meetings.meeting_type, committee_meetings.room,
			committee_meetings.witnesses, committee_meetings.documents)
			IS DISTINCT FROM
			(EXCLUDED.date, EXCLUDED.meeting_time, EXCLUDED.title_en, EXCLUDED.title_fr,
			EXCLUDED.meeting_type, EXCLUDED.room, EXCLUDED.witnesses, EXCLUDED.documents)
		RETURNING (xmax = 0) AS inserted`

	var result model.UpsertResult
	err := r.client.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return errs.NewUnexpected("meeting upsert failed", err)
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
	result.Unchanged = len(meetings) - result.Created - result.Updated
	return result, nil
}

// GetMeetings lists a committee's meetings sorted by date descending.
func (r *CommitteeRepository) GetMeetings(ctx context.Context, key model.CommitteeKey, page paging.Params) ([]model.CommitteeMeeting, int, error) {
	args := []any{key.Slug, key.Parliament, key.Session}
	where := "committee_slug = $1 AND parliament = $2 AND session = $3"

	var total int
	if err := r.client.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM committee_meetings WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, errs.NewUnexpected("failed to count meetings", err)
	}

	if page.Limit == 0 {
		return []model.CommitteeMeeting{}, total, nil
	}

	args = append(args, page.Limit, page.Offset)
	query := fmt.Sprintf(`
		SELECT id, committee_slug, parliament, session, number,
			date, meeting_time, title_en, title_fr, meeting_type, room,
			witnesses, documents, created_at, updated_at
		FROM committee_meetings
		WHERE `+where+`
		ORDER BY date DESC, number DESC
		LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.client.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errs.NewUnexpected("failed to list meetings", err)
	}
	defer func() { _ = rows.Close() }()

	meetings := []model.CommitteeMeeting{}
	for rows.Next() {
		var m model.CommitteeMeeting
		var witnesses, documents []byte
		if err := rows.Scan(&m.ID, &m.CommitteeSlug, &m.Parliament, &m.Session, &m.Number,
			&m.Date, &m.Time, &m.Title.EN, &m.Title.FR, &m.MeetingType, &m.Room,
			&witnesses, &documents, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, errs.NewUnexpected("failed to scan meeting", err)
		}
		if len(witnesses) > 0 {
			if err := json.Unmarshal(witnesses, &m.Witnesses); err != nil {
				return nil, 0, errs.NewUnexpected("failed to decode witnesses", err)
			}
		}
		if len(documents) > 0 {
			if err := json.Unmarshal(documents, &m.Documents); err != nil {
				return nil, 0, errs.NewUnexpected("failed to decode documents", err)
			}
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errs.NewUnexpected("failed to iterate meetings", err)
	}
	return meetings, total, nil
}
