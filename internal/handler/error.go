// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/truecivic/parliament-service/internal/middleware"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// errorBody is the stable error shape every failure maps to.
type errorBody struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

// WriteError maps the error taxonomy onto status codes and the JSON error
// body. Internal faults are logged with their cause chain and surface only a
// correlation ID, never the underlying detail.
func (h *Handler) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal error"

	switch e := err.(type) {
	case errs.Validation:
		status, code, message = http.StatusBadRequest, "invalid_request", e.Error()
	case errs.Unauthorized:
		status, code, message = http.StatusUnauthorized, "unauthorized", e.Error()
	case errs.NotFound:
		status, code, message = http.StatusNotFound, "not_found", e.Error()
	case errs.Conflict:
		status, code, message = http.StatusConflict, "conflict", e.Error()
	case errs.RateLimited:
		status, code, message = http.StatusTooManyRequests, "rate_limited", e.Error()
		retryAfter := int(e.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set(constants.RetryAfterHeader, fmt.Sprintf("%d", retryAfter))
	case errs.ServiceUnavailable:
		status, code, message = http.StatusServiceUnavailable, "dependency_unavailable", "a dependency is unavailable"
		slog.ErrorContext(r.Context(), "dependency unavailable", "error", err)
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err)
	}

	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	body.Error.RequestID = middleware.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeJSON renders a success payload.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
