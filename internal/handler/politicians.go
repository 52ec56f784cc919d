// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// ListPoliticians serves GET /politicians.
func (h *Handler) ListPoliticians(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	party, err := strQuery(r, "party", 80)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	riding, err := strQuery(r, "riding", 120)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	filter := model.PoliticianFilter{
		Jurisdiction: jurisdiction(r),
		Party:        party,
		Riding:       riding,
		CurrentOnly:  boolQuery(r, "current_only"),
	}

	politicians, total, err := h.politicians.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(politicians, total, page))
}

// GetPolitician serves GET /politicians/{id}.
func (h *Handler) GetPolitician(w http.ResponseWriter, r *http.Request) {
	key := model.PoliticianKey{
		Jurisdiction: jurisdiction(r),
		PoliticianID: chi.URLParam(r, "id"),
	}
	politician, err := h.politicians.GetByNaturalKey(r.Context(), key)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, politician)
}
