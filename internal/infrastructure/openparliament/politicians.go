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

type politicianDTO struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Image      string `json:"image"`

	CurrentParty *struct {
		ShortName bilingualDTO `json:"short_name"`
	} `json:"current_party"`
	CurrentRiding *struct {
		Name bilingualDTO `json:"name"`
	} `json:"current_riding"`

	Memberships json.RawMessage `json:"memberships"`
}

func (dto politicianDTO) toModel() (model.Politician, error) {
	slug := slugFromURL(dto.URL)
	if slug == "" {
		return model.Politician{}, fmt.Errorf("politician record missing url slug")
	}
	if dto.Name == "" {
		return model.Politician{}, fmt.Errorf("politician %s missing name", slug)
	}

	p := model.Politician{
		Key: model.PoliticianKey{
			Jurisdiction: constants.JurisdictionCAFederal,
			PoliticianID: slug,
		},
		Name:        dto.Name,
		GivenName:   dto.GivenName,
		FamilyName:  dto.FamilyName,
		Memberships: dto.Memberships,
	}
	if dto.Image != "" {
		image := dto.Image
		p.PhotoURL = &image
	}
	if dto.URL != "" {
		source := dto.URL
		p.SourceURL = &source
	}
	if dto.CurrentParty != nil && dto.CurrentParty.ShortName.En != nil {
		p.CurrentParty = dto.CurrentParty.ShortName.En
	}
	if dto.CurrentRiding != nil && dto.CurrentRiding.Name.En != nil {
		p.CurrentRiding = dto.CurrentRiding.Name.En
	}
	return p, nil
}

// FetchPoliticians fetches one page of politicians.
func (c *Client) FetchPoliticians(ctx context.Context, page port.FetchPage) (*model.Batch[model.Politician], error) {
	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/politicians/", pageParams(page.Limit, page.Offset), &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []politicianDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("politician list failed schema decode", err)
	}

	batch := &model.Batch[model.Politician]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	for _, dto := range dtos {
		politician, err := dto.toModel()
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: slugFromURL(dto.URL),
				Err:       err,
			})
			continue
		}
		batch.Records = append(batch.Records, politician)
	}
	return batch, nil
}
