// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package openparliament

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

type voteDTO struct {
	Number      int          `json:"number"`
	Session     string       `json:"session"`
	Date        string       `json:"date"`
	Chamber     string       `json:"chamber"`
	Description bilingualDTO `json:"description"`
	Result      string       `json:"result"`
	YeaTotal    int          `json:"yea_total"`
	NayTotal    int          `json:"nay_total"`
	PairedTotal int          `json:"paired_total"`
	BillURL     string       `json:"bill_url"`
}

func (dto voteDTO) toModel() (model.Vote, error) {
	if dto.Number == 0 {
		return model.Vote{}, fmt.Errorf("vote record missing number")
	}
	parliament, session, err := parseSession(dto.Session)
	if err != nil {
		return model.Vote{}, err
	}
	if !model.ValidVoteResult(dto.Result) {
		return model.Vote{}, fmt.Errorf("vote %s-%d: unknown result %q", dto.Session, dto.Number, dto.Result)
	}
	date, err := parseDate(dto.Date)
	if err != nil || date == nil {
		return model.Vote{}, fmt.Errorf("vote %s-%d: bad date %q", dto.Session, dto.Number, dto.Date)
	}

	chamber := dto.Chamber
	if chamber == "" {
		chamber = "House"
	}

	vote := model.Vote{
		Key: model.VoteKey{
			Jurisdiction: constants.JurisdictionCAFederal,
			Parliament:   parliament,
			Session:      session,
			Number:       dto.Number,
		},
		Date:        *date,
		Chamber:     chamber,
		Description: dto.Description.toModel(),
		Result:      model.VoteResult(dto.Result),
		Yeas:        dto.YeaTotal,
		Nays:        dto.NayTotal,
		Abstentions: dto.PairedTotal,
	}
	if bill := slugFromURL(dto.BillURL); bill != "" {
		vote.BillNumber = &bill
	}
	return vote, nil
}

// FetchVotes fetches one page of votes, optionally narrowed to those held
// since the window start.
func (c *Client) FetchVotes(ctx context.Context, page port.FetchPage, window port.FetchWindow) (*model.Batch[model.Vote], error) {
	params := pageParams(page.Limit, page.Offset)
	if !window.Since.IsZero() {
		params.Set("date__gte", window.Since.Format("2006-01-02"))
	}

	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/votes/", params, &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []voteDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("vote list failed schema decode", err)
	}

	batch := &model.Batch[model.Vote]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	for _, dto := range dtos {
		vote, err := dto.toModel()
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: fmt.Sprintf("%s-%d", dto.Session, dto.Number),
				Err:       err,
			})
			continue
		}
		batch.Records = append(batch.Records, vote)
	}
	return batch, nil
}

type ballotDTO struct {
	PoliticianURL string `json:"politician_url"`
	Ballot        string `json:"ballot"`
}

// ballotPosition maps upstream ballot strings onto the position enum.
func ballotPosition(raw string) (model.BallotPosition, error) {
	switch raw {
	case "Yes", "Yea":
		return model.BallotYea, nil
	case "No", "Nay":
		return model.BallotNay, nil
	case "Paired":
		return model.BallotPaired, nil
	case "Didn't vote", "Abstain":
		return model.BallotAbstain, nil
	default:
		return "", fmt.Errorf("unknown ballot %q", raw)
	}
}

// FetchVoteRecords fetches every ballot for one vote, paginating internally
// until an empty page.
func (c *Client) FetchVoteRecords(ctx context.Context, key model.VoteKey) (*model.Batch[model.VoteRecord], error) {
	voteRef := fmt.Sprintf("/votes/%d-%d/%d/", key.Parliament, key.Session, key.Number)

	batch := &model.Batch[model.VoteRecord]{Total: -1}
	offset := 0
	for {
		params := pageParams(constants.MaxFetchLimit, offset)
		params.Set("vote", voteRef)

		var envelope listEnvelope
		provenance, err := c.getJSON(ctx, "/votes/ballots/", params, &envelope)
		if err != nil {
			return nil, err
		}
		batch.Provenance = provenance

		var dtos []ballotDTO
		if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
			return nil, errs.NewValidation("ballot list failed schema decode", err)
		}
		if len(dtos) == 0 {
			break
		}

		for _, dto := range dtos {
			politician := slugFromURL(dto.PoliticianURL)
			if politician == "" {
				batch.Errors = append(batch.Errors, model.RecordError{
					NaturalID: key.NaturalID(),
					Err:       fmt.Errorf("ballot missing politician reference"),
				})
				continue
			}
			position, err := ballotPosition(dto.Ballot)
			if err != nil {
				batch.Errors = append(batch.Errors, model.RecordError{
					NaturalID: key.NaturalID() + ":" + politician,
					Err:       err,
				})
				continue
			}
			batch.Records = append(batch.Records, model.VoteRecord{
				VoteNaturalID: key.NaturalID(),
				PoliticianID:  politician,
				Position:      position,
			})
		}

		if envelope.Pagination.Count != nil && offset+len(dtos) >= *envelope.Pagination.Count {
			break
		}
		offset += len(dtos)
	}

	batch.Total = len(batch.Records)
	return batch, nil
}
