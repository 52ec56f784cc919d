// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/service"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// authFailuresPerHour bounds failed auth attempts per source IP to resist key
// enumeration.
const authFailuresPerHour = 60

// APIKeyMiddleware enforces X-API-Key on every route it wraps and emits the
// X-RateLimit-* headers from the key's bucket decision.
func APIKeyMiddleware(keys service.APIKeyService, failureLimiter *ratelimit.Registry, writeError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := r.Header.Get(constants.APIKeyHeader)
			if rawKey == "" {
				writeError(w, r, errs.NewUnauthorized("missing X-API-Key header"))
				return
			}

			key, decision, err := keys.Authenticate(r.Context(), rawKey)
			if decision.Limit > 0 {
				setRateLimitHeaders(w, decision)
			}
			if err != nil {
				var unauthorized errs.Unauthorized
				if errors.As(err, &unauthorized) {
					// Failed attempts are rate limited per source IP.
					ip := clientIP(r)
					if ipDecision := failureLimiter.Allow("auth-fail:"+ip, authFailuresPerHour); !ipDecision.Allowed {
						writeError(w, r, errs.NewRateLimited(
							"too many failed authentication attempts", ipDecision.RetryAfter))
						return
					}
				}
				writeError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), constants.APIKeyContextID, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyFromContext returns the authenticated key, if any.
func APIKeyFromContext(ctx context.Context) *model.APIKey {
	if key, ok := ctx.Value(constants.APIKeyContextID).(*model.APIKey); ok {
		return key
	}
	return nil
}

func setRateLimitHeaders(w http.ResponseWriter, decision ratelimit.Decision) {
	w.Header().Set(constants.RateLimitLimitHeader, fmt.Sprintf("%d", decision.Limit))
	w.Header().Set(constants.RateLimitRemainingHeader, fmt.Sprintf("%d", decision.Remaining))
	w.Header().Set(constants.RateLimitResetHeader, fmt.Sprintf("%d", decision.Reset.Unix()))
}

// clientIP extracts the source IP, honouring the forwarded chain's first hop.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx > 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return strings.TrimSpace(forwarded)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}
