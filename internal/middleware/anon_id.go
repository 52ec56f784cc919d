// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
)

// AnonIDMiddleware validates the optional X-Anon-Id header and carries the
// device identifier in the context. A malformed header is rejected up front
// so handlers never see a bad device ID.
func AnonIDMiddleware(writeError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := r.Header.Get(constants.AnonIDHeader)
			if deviceID != "" {
				if err := model.ValidateAnonID(deviceID); err != nil {
					writeError(w, r, err)
					return
				}
				ctx := context.WithValue(r.Context(), constants.AnonIDContextID, deviceID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AnonIDFromContext returns the validated device identifier, or empty.
func AnonIDFromContext(ctx context.Context) string {
	if deviceID, ok := ctx.Value(constants.AnonIDContextID).(string); ok {
		return deviceID
	}
	return ""
}
