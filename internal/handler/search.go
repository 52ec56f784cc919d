// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"net/http"
)

// Search serves GET /search, the cross-entity endpoint.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	excluded, err := h.excludedBillIDs(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	result, err := h.search.Search(r.Context(), jurisdiction(r),
		r.URL.Query().Get("q"), r.URL.Query().Get("type"), page, excluded)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
