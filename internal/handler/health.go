// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package handler

import (
	"net/http"
)

// Health serves GET /health. Liveness is implied by answering; each
// registered dependency is probed for readiness. Any failing probe turns the
// response 503 so orchestrators stop routing here.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(h.readiness))

	for name, checker := range h.readiness {
		if err := checker.IsReady(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	h.writeJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}
