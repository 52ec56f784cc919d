// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/truecivic/parliament-service/internal/domain/model"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/fields"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// ListBills serves GET /bills.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
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
	status, err := strQuery(r, "status", 40)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	if err := ensureValidStatus(status); err != nil {
		h.WriteError(w, r, err)
		return
	}

	sortField, order, err := parseSort(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	excluded, err := h.excludedBillIDs(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	filter := model.BillFilter{
		Jurisdiction: jurisdiction(r),
		Parliament:   parliament,
		Session:      session,
		Status:       status,
		ExcludeIDs:   excluded,
		Sort:         sortField,
		Order:        order,
	}

	bills, total, err := h.bills.GetByFilter(r.Context(), filter, page)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(bills, total, page))
}

// parseSort validates the sort/order pair: the sort key must be a known
// ordering and an actual field of the bill record.
func parseSort(r *http.Request) (string, string, error) {
	sortField := r.URL.Query().Get("sort")
	order := r.URL.Query().Get("order")

	if sortField != "" {
		allowed := false
		for _, field := range model.BillSortFields {
			if sortField == field {
				allowed = true
				break
			}
		}
		_, ok := fields.LookupByTag(model.Bill{}, "json", sortField)
		if !ok {
			// Natural-key fields live on the embedded key struct.
			_, ok = fields.LookupByTag(model.BillKey{}, "json", sortField)
		}
		if !ok || !allowed {
			return "", "", errs.NewValidation("unknown sort field")
		}
	}

	switch order {
	case "", "asc", "desc":
	default:
		return "", "", errs.NewValidation("order must be asc or desc")
	}

	return sortField, order, nil
}

// GetBill serves GET /bills/{id}.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	key, err := model.ParseBillNaturalID(jurisdiction(r), chi.URLParam(r, "id"))
	if err != nil {
		h.WriteError(w, r, errs.NewValidation("invalid bill id", err))
		return
	}

	bill, err := h.bills.GetByNaturalKey(r.Context(), key)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, bill)
}

// SearchBills serves GET /bills/search.
func (h *Handler) SearchBills(w http.ResponseWriter, r *http.Request) {
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

	hits, total, err := h.search.SearchBills(r.Context(), jurisdiction(r),
		r.URL.Query().Get("q"), page, excluded)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paging.NewPage(hits, total, page))
}
