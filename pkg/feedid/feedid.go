// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package feedid builds the stable GUIDs carried by feed items. The same
// logical event must yield a byte-identical GUID on every rebuild, so GUIDs
// are assembled from natural identifiers only, never from surrogate IDs or
// fetch timestamps.
package feedid

import (
	"fmt"
	"time"
)

// EventKind names what happened to an entity.
type EventKind string

const (
	EventIntroduced  EventKind = "introduced"
	EventStatus      EventKind = "status"
	EventRoyalAssent EventKind = "royal-assent"
	EventVoteHeld    EventKind = "vote-held"
	EventDebate      EventKind = "debate"
	EventMeeting     EventKind = "meeting"
)

// GUID renders {jurisdiction}:{entity_type}:{natural_id}:{event_kind}:{event_date}.
func GUID(jurisdiction, entityType, naturalID string, kind EventKind, eventDate time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s",
		jurisdiction, entityType, naturalID, kind, eventDate.UTC().Format("2006-01-02"))
}
