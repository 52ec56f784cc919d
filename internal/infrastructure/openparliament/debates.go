// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package openparliament

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

type debateDTO struct {
	Number  int          `json:"number"`
	Session string       `json:"session"`
	Date    string       `json:"date"`
	Chamber string       `json:"chamber"`
	Type    string       `json:"debate_type"`
	Topic   bilingualDTO `json:"most_frequent_word"`
}

func (dto debateDTO) toModel() (model.Debate, error) {
	if dto.Number == 0 {
		return model.Debate{}, fmt.Errorf("debate record missing number")
	}
	parliament, session, err := parseSession(dto.Session)
	if err != nil {
		return model.Debate{}, err
	}
	date, err := parseDate(dto.Date)
	if err != nil || date == nil {
		return model.Debate{}, fmt.Errorf("debate %s-%d: bad date %q", dto.Session, dto.Number, dto.Date)
	}

	chamber := dto.Chamber
	if chamber == "" {
		chamber = "House"
	}

	return model.Debate{
		Key: model.DebateKey{
			Jurisdiction: constants.JurisdictionCAFederal,
			Parliament:   parliament,
			Session:      session,
			Number:       dto.Number,
		},
		Date:       *date,
		Chamber:    chamber,
		DebateType: dto.Type,
		Topic:      dto.Topic.toModel(),
	}, nil
}

// FetchDebates fetches one page of debates, optionally narrowed to sittings
// since the window start.
func (c *Client) FetchDebates(ctx context.Context, page port.FetchPage, window port.FetchWindow) (*model.Batch[model.Debate], error) {
	params := pageParams(page.Limit, page.Offset)
	if !window.Since.IsZero() {
		params.Set("date__gte", window.Since.Format("2006-01-02"))
	}

	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/debates/", params, &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []debateDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("debate list failed schema decode", err)
	}

	batch := &model.Batch[model.Debate]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	for _, dto := range dtos {
		debate, err := dto.toModel()
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: fmt.Sprintf("%s-%d", dto.Session, dto.Number),
				Err:       err,
			})
			continue
		}
		batch.Records = append(batch.Records, debate)
	}
	return batch, nil
}

type speechDTO struct {
	Sequence      int          `json:"sequence"`
	PoliticianURL string       `json:"politician_url"`
	AttributedTo  string       `json:"attribution"`
	Role          string       `json:"politician_membership_role"`
	Language      string       `json:"language"`
	Content       bilingualDTO `json:"content"`
	Time          string       `json:"time"`
}

func (dto speechDTO) toModel(key model.DebateKey, fallbackSequence int) (model.Speech, error) {
	sequence := dto.Sequence
	if sequence == 0 {
		sequence = fallbackSequence
	}
	if dto.AttributedTo == "" && dto.PoliticianURL == "" {
		return model.Speech{}, fmt.Errorf("speech %d missing attribution", sequence)
	}

	speech := model.Speech{
		DebateNaturalID: key.NaturalID(),
		Sequence:        sequence,
		SpeakerName:     dto.AttributedTo,
		Role:            dto.Role,
		Language:        dto.Language,
		Text:            dto.Content.toModel(),
	}
	if politician := slugFromURL(dto.PoliticianURL); politician != "" {
		speech.PoliticianID = &politician
		if speech.SpeakerName == "" {
			speech.SpeakerName = politician
		}
	}
	if dto.Time != "" {
		if at, err := time.Parse(time.RFC3339, dto.Time); err == nil {
			speech.Time = &at
		}
	}
	return speech, nil
}

// FetchSpeeches fetches one page of a debate's speeches.
func (c *Client) FetchSpeeches(ctx context.Context, key model.DebateKey, page port.FetchPage) (*model.Batch[model.Speech], error) {
	params := pageParams(page.Limit, page.Offset)
	params.Set("document", fmt.Sprintf("/debates/%d-%d/%d/", key.Parliament, key.Session, key.Number))

	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/speeches/", params, &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []speechDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("speech list failed schema decode", err)
	}

	batch := &model.Batch[model.Speech]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	for i, dto := range dtos {
		speech, err := dto.toModel(key, page.Offset+i+1)
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: fmt.Sprintf("%s:%d", key.NaturalID(), page.Offset+i+1),
				Err:       err,
			})
			continue
		}
		batch.Records = append(batch.Records, speech)
	}
	return batch, nil
}
