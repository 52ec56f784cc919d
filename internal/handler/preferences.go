// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/truecivic/parliament-service/internal/middleware"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// ignoreRequest is the body for ignore mutations.
type ignoreRequest struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (h *Handler) requireDevice(r *http.Request) (string, error) {
	deviceID := middleware.AnonIDFromContext(r.Context())
	if deviceID == "" {
		return "", errs.NewValidation("X-Anon-Id header is required")
	}
	return deviceID, nil
}

func decodeIgnoreRequest(r *http.Request) (ignoreRequest, error) {
	var body ignoreRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, errs.NewValidation("invalid request body", err)
	}
	if body.EntityType != "bill" {
		return body, errs.NewValidation("entity_type must be \"bill\"")
	}
	if body.EntityID == "" {
		return body, errs.NewValidation("entity_id is required")
	}
	return body, nil
}

// AddIgnore serves POST /preferences/ignore.
func (h *Handler) AddIgnore(w http.ResponseWriter, r *http.Request) {
	deviceID, err := h.requireDevice(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	body, err := decodeIgnoreRequest(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := h.preferences.IgnoreBill(r.Context(), deviceID, jurisdiction(r), body.EntityID); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveIgnore serves DELETE /preferences/ignore.
func (h *Handler) RemoveIgnore(w http.ResponseWriter, r *http.Request) {
	deviceID, err := h.requireDevice(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	body, err := decodeIgnoreRequest(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	if err := h.preferences.UnignoreBill(r.Context(), deviceID, jurisdiction(r), body.EntityID); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListIgnored serves GET /preferences/ignored.
func (h *Handler) ListIgnored(w http.ResponseWriter, r *http.Request) {
	deviceID, err := h.requireDevice(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	bills, err := h.preferences.ListIgnored(r.Context(), deviceID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": bills, "total": len(bills)})
}

// CreateFeedToken serves POST /preferences/feed-token; the token is returned
// exactly once.
func (h *Handler) CreateFeedToken(w http.ResponseWriter, r *http.Request) {
	deviceID, err := h.requireDevice(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	token, err := h.preferences.CreateFeedToken(r.Context(), deviceID)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token.Token,
		"created_at": token.CreatedAt,
	})
}

// RevokeFeedToken serves DELETE /preferences/feed-token/{token}.
func (h *Handler) RevokeFeedToken(w http.ResponseWriter, r *http.Request) {
	deviceID, err := h.requireDevice(r)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}

	token := chi.URLParam(r, "token")
	resolved, err := h.preferences.ResolveFeedToken(r.Context(), token)
	if err != nil {
		h.WriteError(w, r, err)
		return
	}
	// A device can only revoke its own tokens.
	if resolved.DeviceID != deviceID {
		h.WriteError(w, r, errs.NewNotFound("unknown feed token"))
		return
	}

	if err := h.preferences.RevokeFeedToken(r.Context(), token); err != nil {
		h.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
