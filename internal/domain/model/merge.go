// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"strings"
	"time"
)

// BillEnrichment is what the enrichment site knows about a bill that the
// catalogue does not: subject tags, the royal-assent chapter, and a fuller
// summary. Natural key fields identify the bill it belongs to.
type BillEnrichment struct {
	Key BillKey `json:"key"`

	Summary            *string    `json:"summary,omitempty"`
	SubjectTags        []string   `json:"subject_tags,omitempty"`
	RoyalAssentChapter *string    `json:"royal_assent_chapter,omitempty"`
	RoyalAssentDate    *time.Time `json:"royal_assent_date,omitempty"`
	Status             *string    `json:"status,omitempty"`
	Title              Bilingual  `json:"title"`

	FetchedAt time.Time `json:"fetched_at"`
}

// MergeBill combines a primary catalogue record with an optional enrichment
// record sharing its natural key. Precedence: primary wins unless the primary
// field is null or empty and the enrichment has a value; arrays are unioned
// with stable de-duplication. This is the only place per-field precedence is
// decided; repositories never re-implement it.
func MergeBill(primary Bill, enrichment *BillEnrichment) Bill {
	merged := primary
	merged.SourcePrimary = true

	if enrichment == nil {
		return merged
	}
	merged.SourceEnrichment = true

	merged.Summary = fillString(merged.Summary, enrichment.Summary)
	merged.RoyalAssentChapter = fillString(merged.RoyalAssentChapter, enrichment.RoyalAssentChapter)
	merged.Status = fillEmpty(merged.Status, enrichment.Status)
	merged.Title = fillBilingual(merged.Title, enrichment.Title)

	if merged.RoyalAssentDate == nil && enrichment.RoyalAssentDate != nil {
		date := *enrichment.RoyalAssentDate
		merged.RoyalAssentDate = &date
	}

	merged.SubjectTags = unionStrings(merged.SubjectTags, enrichment.SubjectTags)

	if !enrichment.FetchedAt.IsZero() {
		at := enrichment.FetchedAt
		merged.LastEnrichedAt = &at
	}

	return merged
}

// fillString keeps primary unless it is nil or empty.
func fillString(primary, enrichment *string) *string {
	if primary != nil && *primary != "" {
		return primary
	}
	if enrichment != nil && *enrichment != "" {
		v := *enrichment
		return &v
	}
	return primary
}

// fillEmpty keeps a non-empty primary string value.
func fillEmpty(primary string, enrichment *string) string {
	if primary != "" {
		return primary
	}
	if enrichment != nil {
		return *enrichment
	}
	return primary
}

// fillBilingual fills each language independently.
func fillBilingual(primary, enrichment Bilingual) Bilingual {
	return Bilingual{
		EN: fillString(primary.EN, enrichment.EN),
		FR: fillString(primary.FR, enrichment.FR),
	}
}

// unionStrings merges two lists preserving first-seen order, de-duplicating
// by canonical (trimmed, lowercased) value. The surface form of the first
// occurrence wins.
func unionStrings(primary, enrichment []string) []string {
	if len(primary) == 0 && len(enrichment) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(primary)+len(enrichment))
	var out []string
	for _, list := range [][]string{primary, enrichment} {
		for _, v := range list {
			canonical := strings.ToLower(strings.TrimSpace(v))
			if canonical == "" || seen[canonical] {
				continue
			}
			seen[canonical] = true
			out = append(out, v)
		}
	}
	return out
}
