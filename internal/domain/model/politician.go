// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"encoding/json"
	"time"
)

// PoliticianKey is the natural identifier of a politician.
type PoliticianKey struct {
	Jurisdiction string `json:"jurisdiction"`
	PoliticianID string `json:"politician_id"`
}

// Politician represents a member of parliament.
type Politician struct {
	ID  int64         `json:"id,omitempty"`
	Key PoliticianKey `json:"key"`

	Name       string `json:"name"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`

	CurrentParty  *string `json:"current_party,omitempty"`
	CurrentRiding *string `json:"current_riding,omitempty"`

	PhotoURL  *string `json:"photo_url,omitempty"`
	SourceURL *string `json:"source_url,omitempty"`

	// Memberships is the upstream membership history, kept as-is. Its shape
	// varies by parliament and is not normalized.
	Memberships json.RawMessage `json:"memberships,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PoliticianFilter narrows politician list queries.
type PoliticianFilter struct {
	Jurisdiction string
	Party        *string
	Riding       *string
	CurrentOnly  bool
}
