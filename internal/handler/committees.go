// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// ListCommittees serves GET /committees.
func (h *Handler) ListCommittees(w http.ResponseWriter, r *http.Request) {
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
	chamber, err := strQuery(r, "chamber", 40)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	filter := model.CommitteeFilter{
		Jurisdiction: jurisdiction(r),
		Parliament:   parliament,
		Session:      session,
		Chamber:      chamber,
	}

	committees, total, err := h.committees.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(committees, total, page))
}

// GetCommittee serves GET /committees/{id}.
func (h *Handler) GetCommittee(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseCommitteeNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid committee id", err))
		return
	}

	committee, err := h.committees.GetByNaturalKey(r.Context(), key)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, committee)
}

// ListCommitteeMeetings serves GET /committees/{id}/meetings.
func (h *Handler) ListCommitteeMeetings(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseCommitteeNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid committee id", err))
		return
	}

	page, err := parsePage(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if _, err := h.committees.GetByNaturalKey(r.Context(), key); err != nil {
		h.WriteError(w, r, err)
		return
	}

	meetings, total, err := h.committees.GetMeetings(r.Context(), key, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(meetings, total, page))
}
