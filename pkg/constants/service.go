// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package constants holds service-wide names, header keys, and limits.
package constants

// ServiceName identifies this service to peers (NATS connection name,
// User-Agent suffix).
const ServiceName = "parliament-service"

// JurisdictionCAFederal is the only jurisdiction ingested today. The model is
// scoped by jurisdiction so further ones can be added without schema changes.
const JurisdictionCAFederal = "ca-federal"

// Pagination bounds for API list endpoints.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Pagination bounds for upstream catalogue requests.
const (
	DefaultFetchLimit = 50
	MaxFetchLimit     = 100
)

// UpsertBatchSize bounds a single repository upsert statement; callers slice
// larger inputs.
const UpsertBatchSize = 500

// Search bounds.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Feed limits.
const (
	FeedItemCount         = 50
	FeedRebuildsPerHour   = 12
	FeedIPRequestsPerHour = 60
	FeedTokenRequestsHour = 30
	FeedGlobalResponsesHr = 1000
	FeedTokenMinLength    = 32
)
