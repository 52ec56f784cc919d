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

// debateDetail is a debate with its optional inline speeches.
type debateDetail struct {
	model.Debate
	Speeches []model.Speech `json:"speeches,omitempty"`
}

// ListDebates serves GET /debates.
func (h *Handler) ListDebates(w http.ResponseWriter, r *http.Request) {
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

	filter := model.DebateFilter{
		Jurisdiction: jurisdiction(r),
		Parliament:   parliament,
		Session:      session,
	}

	debates, total, err := h.debates.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(debates, total, page))
}

// GetDebate serves GET /debates/{id}; include_speeches=true inlines the
// speeches.
func (h *Handler) GetDebate(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseDebateNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid debate id", err))
		return
	}

	debate, err := h.debates.GetByNaturalKey(r.Context(), key)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	detail := debateDetail{Debate: *debate}
	if boolQuery(r, "include_speeches") {
		speeches, _, err := h.debates.GetSpeeches(r.Context(),
			model.SpeechFilter{DebateNaturalID: key.NaturalID()},
			paging.Params{Limit: 500})
		if err != nil {
			h.WriteError(w, r, err)
			return
		}
		detail.Speeches = speeches
	}
	h.writeJSON(w, http.StatusOK, detail)
}

// ListSpeeches serves GET /debates/{id}/speeches.
func (h *Handler) ListSpeeches(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseDebateNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid debate id", err))
		return
	}

	page, err := parsePage(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	politicianID, err := strQuery(r, "politician_id", 120)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if _, err := h.debates.GetByNaturalKey(r.Context(), key); err != nil {
		h.WriteError(w, r, err)
		return
	}

	speeches, total, err := h.debates.GetSpeeches(r.Context(), model.SpeechFilter{
		DebateNaturalID: key.NaturalID(),
		PoliticianID:    politicianID,
	}, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(speeches, total, page))
}
