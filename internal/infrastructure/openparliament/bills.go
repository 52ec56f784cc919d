// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package openparliament

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// bilingualDTO is the upstream {en, fr} object. Absent languages stay null
// and are never copied from the other.
type bilingualDTO struct {
	En *string `json:"en"`
	Fr *string `json:"fr"`
}

func (b bilingualDTO) toModel() model.Bilingual {
	out := model.Bilingual{}
	if b.En != nil && *b.En != "" {
		out.EN = b.En
	}
	if b.Fr != nil && *b.Fr != "" {
		out.FR = b.Fr
	}
	return out
}

// parseSession splits the upstream "44-1" session token.
func parseSession(session string) (int, int, error) {
	parts := strings.SplitN(session, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed session %q", session)
	}
	parliament, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed parliament in session %q", session)
	}
	sessionNum, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed session number in %q", session)
	}
	return parliament, sessionNum, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// slugFromURL pulls the last path segment from an upstream reference URL like
// /politicians/pierre-poilievre/.
func slugFromURL(ref string) string {
	trimmed := strings.Trim(ref, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

type billDTO struct {
	Number         string       `json:"number"`
	Session        string       `json:"session"`
	Name           bilingualDTO `json:"name"`
	ShortTitle     bilingualDTO `json:"short_title"`
	SponsorURL     string       `json:"sponsor_politician_url"`
	Introduced     string       `json:"introduced"`
	Status         string       `json:"status_code"`
	RoyalAssentDay string       `json:"law_date"`
}

func (dto billDTO) toModel() (model.Bill, error) {
	if dto.Number == "" {
		return model.Bill{}, fmt.Errorf("bill record missing number")
	}
	parliament, session, err := parseSession(dto.Session)
	if err != nil {
		return model.Bill{}, err
	}

	introduced, err := parseDate(dto.Introduced)
	if err != nil {
		return model.Bill{}, fmt.Errorf("bill %s: bad introduced date: %w", dto.Number, err)
	}
	assent, err := parseDate(dto.RoyalAssentDay)
	if err != nil {
		return model.Bill{}, fmt.Errorf("bill %s: bad law date: %w", dto.Number, err)
	}

	bill := model.Bill{
		Key: model.BillKey{
			Jurisdiction: constants.JurisdictionCAFederal,
			Parliament:   parliament,
			Session:      session,
			Number:       dto.Number,
		},
		Title:           dto.Name.toModel(),
		ShortTitle:      dto.ShortTitle.toModel(),
		IntroducedDate:  introduced,
		Status:          dto.Status,
		RoyalAssentDate: assent,
		SourcePrimary:   true,
	}
	if sponsor := slugFromURL(dto.SponsorURL); sponsor != "" {
		bill.SponsorPoliticianID = &sponsor
	}
	return bill, nil
}

// FetchBills fetches one page of bills, optionally narrowed to those
// introduced since the window start.
func (c *Client) FetchBills(ctx context.Context, page port.FetchPage, window port.FetchWindow) (*model.Batch[model.Bill], error) {
	params := pageParams(page.Limit, page.Offset)
	if !window.Since.IsZero() {
		params.Set("introduced__gte", window.Since.Format("2006-01-02"))
	}

	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/bills/", params, &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []billDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("bill list failed schema decode", err)
	}

	batch := &model.Batch[model.Bill]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	now := provenance.FetchedAt
	for _, dto := range dtos {
		bill, err := dto.toModel()
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: dto.Session + "-" + dto.Number,
				Err:       err,
			})
			continue
		}
		bill.LastFetchedAt = &now
		batch.Records = append(batch.Records, bill)
	}
	return batch, nil
}
