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

type committeeDTO struct {
	Slug      string       `json:"slug"`
	Session   string       `json:"session"`
	Name      bilingualDTO `json:"name"`
	ShortName bilingualDTO `json:"short_name"`
	Chamber   string       `json:"chamber"`
	ParentURL string       `json:"parent_url"`
	URL       string       `json:"url"`
}

func (dto committeeDTO) toModel() (model.Committee, error) {
	if dto.Slug == "" {
		return model.Committee{}, fmt.Errorf("committee record missing slug")
	}
	parliament, session, err := parseSession(dto.Session)
	if err != nil {
		return model.Committee{}, err
	}

	chamber := dto.Chamber
	if chamber == "" {
		chamber = "House"
	}

	committee := model.Committee{
		Key: model.CommitteeKey{
			Jurisdiction: constants.JurisdictionCAFederal,
			Parliament:   parliament,
			Session:      session,
			Slug:         dto.Slug,
		},
		Name:    dto.Name.toModel(),
		Acronym: dto.ShortName.toModel(),
		Chamber: chamber,
	}
	if parent := slugFromURL(dto.ParentURL); parent != "" {
		committee.ParentSlug = &parent
	}
	if dto.URL != "" {
		source := dto.URL
		committee.SourceURL = &source
	}
	return committee, nil
}

// FetchCommittees fetches one page of committees.
func (c *Client) FetchCommittees(ctx context.Context, page port.FetchPage) (*model.Batch[model.Committee], error) {
	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/committees/", pageParams(page.Limit, page.Offset), &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []committeeDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("committee list failed schema decode", err)
	}

	batch := &model.Batch[model.Committee]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	for _, dto := range dtos {
		committee, err := dto.toModel()
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: dto.Slug,
				Err:       err,
			})
			continue
		}
		batch.Records = append(batch.Records, committee)
	}
	return batch, nil
}

type witnessDTO struct {
	Name  string `json:"name"`
	Org   string `json:"organization"`
	Title string `json:"title"`
}

type documentDTO struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type"`
}

type meetingDTO struct {
	Number    int           `json:"number"`
	Date      string        `json:"date"`
	Time      string        `json:"start_time"`
	Title     bilingualDTO  `json:"title"`
	Type      string        `json:"meeting_type"`
	Room      string        `json:"room"`
	Witnesses []witnessDTO  `json:"witnesses"`
	Documents []documentDTO `json:"documents"`
}

func (dto meetingDTO) toModel(key model.CommitteeKey) (model.CommitteeMeeting, error) {
	if dto.Number == 0 {
		return model.CommitteeMeeting{}, fmt.Errorf("meeting record missing number")
	}
	date, err := parseDate(dto.Date)
	if err != nil || date == nil {
		return model.CommitteeMeeting{}, fmt.Errorf("meeting %d: bad date %q", dto.Number, dto.Date)
	}

	meeting := model.CommitteeMeeting{
		CommitteeSlug: key.Slug,
		Parliament:    key.Parliament,
		Session:       key.Session,
		Number:        dto.Number,
		Date:          *date,
		Title:         dto.Title.toModel(),
		MeetingType:   dto.Type,
	}
	if dto.Time != "" {
		meetingTime := dto.Time
		meeting.Time = &meetingTime
	}
	if dto.Room != "" {
		room := dto.Room
		meeting.Room = &room
	}
	for _, w := range dto.Witnesses {
		meeting.Witnesses = append(meeting.Witnesses, model.Witness{
			Name: w.Name, Org: w.Org, Title: w.Title,
		})
	}
	for _, d := range dto.Documents {
		meeting.Documents = append(meeting.Documents, model.MeetingDocument{
			Title: d.Title, URL: d.URL, Type: d.Type,
		})
	}
	return meeting, nil
}

// FetchMeetings fetches one page of a committee's meetings.
func (c *Client) FetchMeetings(ctx context.Context, key model.CommitteeKey, page port.FetchPage) (*model.Batch[model.CommitteeMeeting], error) {
	params := pageParams(page.Limit, page.Offset)
	params.Set("committee", key.Slug)
	params.Set("session", fmt.Sprintf("%d-%d", key.Parliament, key.Session))

	var envelope listEnvelope
	provenance, err := c.getJSON(ctx, "/committees/meetings/", params, &envelope)
	if err != nil {
		return nil, err
	}

	var dtos []meetingDTO
	if err := json.Unmarshal(envelope.Objects, &dtos); err != nil {
		return nil, errs.NewValidation("meeting list failed schema decode", err)
	}

	batch := &model.Batch[model.CommitteeMeeting]{
		Provenance: provenance,
		Total:      totalOrUnknown(envelope.Pagination.Count),
	}
	for _, dto := range dtos {
		meeting, err := dto.toModel(key)
		if err != nil {
			batch.Errors = append(batch.Errors, model.RecordError{
				NaturalID: fmt.Sprintf("%s-%d", key.Slug, dto.Number),
				Err:       err,
			})
			continue
		}
		batch.Records = append(batch.Records, meeting)
	}
	return batch, nil
}
