// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package constants

type requestIDHeaderType string

// RequestIDHeader is the header name for the request ID
const RequestIDHeader requestIDHeaderType = "X-Request-Id"

// APIKeyHeader is the header carrying the raw API key.
const APIKeyHeader string = "X-API-Key"

// AnonIDHeader is the header carrying the opaque device identifier.
const AnonIDHeader string = "X-Anon-Id"

// Rate-limit response headers.
const (
	RateLimitLimitHeader     = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
	RetryAfterHeader         = "Retry-After"
)

type contextAPIKey string

// APIKeyContextID is the context key for the authenticated API key record.
const APIKeyContextID contextAPIKey = "api-key"

type contextAnonID string

// AnonIDContextID is the context key for the validated device identifier.
const AnonIDContextID contextAnonID = "anon-id"
