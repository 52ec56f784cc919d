// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// voteDetail is a vote with its optional inline records.
type voteDetail struct {
	model.Vote
	Records []model.VoteRecord `json:"records,omitempty"`
}

// ListVotes serves GET /votes.
func (h *Handler) ListVotes(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	parliament, err := intQuery(r, "parliament")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	session, err := intQuery(r, "session")
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	filter := model.VoteFilter{
		Jurisdiction: jurisdiction(r),
		Parliament:   parliament,
		Session:      session,
	}

	if raw := r.URL.Query().Get("bill_id"); raw != "" {
		billID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.WriteError(w, r, errs.NewValidation("bill_id must be an integer"))
			return
		}
		filter.BillID = &billID
	}
	if raw := r.URL.Query().Get("result"); raw != "" {
		if !model.ValidVoteResult(raw) {
			h.WriteError(w, r, errs.NewValidation("result must be Passed, Defeated, or Tied"))
			return
		}
		result := model.VoteResult(raw)
		filter.Result = &result
	}

	votes, total, err := h.votes.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(votes, total, page))
}

// GetVote serves GET /votes/{id}; include_records=true inlines the ballots.
func (h *Handler) GetVote(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseVoteNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid vote id", err))
		return
	}

	vote, err := h.votes.GetByNaturalKey(r.Context(), key)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	detail := voteDetail{Vote: *vote}
	if boolQuery(r, "include_records") {
		records, _, err := h.votes.GetRecords(r.Context(), key.NaturalID(), nil,
			paging.Params{Limit: 500})
		if err != nil {
			h.WriteError(w, r, err)
			return
		}
		detail.Records = records
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// ListVoteRecords serves GET /votes/{id}/records.
func (h *Handler) ListVoteRecords(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseVoteNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid vote id", err))
		return
	}

	page, err := parsePage(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	var position *model.BallotPosition
	if raw := r.URL.Query().Get("position"); raw != "" {
		if !model.ValidBallotPosition(raw) {
			h.WriteError(w, r, errs.NewValidation("position must be Yea, Nay, Paired, or Abstain"))
			return
		}
		p := model.BallotPosition(raw)
		position = &p
	}

	// The vote must exist even when it has no ballots yet.
	if _, err := h.votes.GetByNaturalKey(r.Context(), key); err != nil {
		h.WriteError(w, r, err)
		return
	}

	records, total, err := h.votes.GetRecords(r.Context(), key.NaturalID(), position, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(records, total, page))
}
