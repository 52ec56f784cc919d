// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testBillKey() BillKey {
	return BillKey{Jurisdiction: "ca-federal", Parliament: 44, Session: 1, Number: "C-11"}
}

func TestMergeBillPrimaryOnly(t *testing.T) {
	introduced := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	primary := Bill{
		Key:            testBillKey(),
		Title:          Bilingual{EN: StringPtr("Bill 11")},
		IntroducedDate: &introduced,
	}

	merged := MergeBill(primary, nil)

	assert.True(t, merged.SourcePrimary)
	assert.False(t, merged.SourceEnrichment)
	assert.Equal(t, "Bill 11", *merged.Title.EN)
	assert.Nil(t, merged.LastEnrichedAt)
}

func TestMergeBillEnrichmentFillsGaps(t *testing.T) {
	fetched := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	primary := Bill{
		Key:   testBillKey(),
		Title: Bilingual{EN: StringPtr("Bill 11")},
	}
	enrichment := &BillEnrichment{
		Key:                testBillKey(),
		Summary:            StringPtr("An Act respecting broadcasting"),
		SubjectTags:        []string{"broadcasting"},
		RoyalAssentChapter: StringPtr("2024, c. 3"),
		Title:              Bilingual{EN: StringPtr("Online Streaming Act"), FR: StringPtr("Loi sur la diffusion")},
		FetchedAt:          fetched,
	}

	merged := MergeBill(primary, enrichment)

	assert.True(t, merged.SourcePrimary)
	assert.True(t, merged.SourceEnrichment)
	// Primary wins where it has a value.
	assert.Equal(t, "Bill 11", *merged.Title.EN)
	// Enrichment fills the gaps, per-language.
	assert.Equal(t, "Loi sur la diffusion", *merged.Title.FR)
	assert.Equal(t, "An Act respecting broadcasting", *merged.Summary)
	assert.Equal(t, "2024, c. 3", *merged.RoyalAssentChapter)
	assert.Equal(t, []string{"broadcasting"}, merged.SubjectTags)
	assert.Equal(t, fetched, *merged.LastEnrichedAt)
}

func TestMergeBillPrimaryNotOverwritten(t *testing.T) {
	primary := Bill{
		Key:     testBillKey(),
		Summary: StringPtr("catalogue summary"),
		Status:  "second-reading",
	}
	enrichment := &BillEnrichment{
		Key:     testBillKey(),
		Summary: StringPtr("site summary"),
		Status:  StringPtr("royal-assent"),
	}

	merged := MergeBill(primary, enrichment)

	assert.Equal(t, "catalogue summary", *merged.Summary)
	assert.Equal(t, "second-reading", merged.Status)
}

func TestMergeBillTagUnionStableDedup(t *testing.T) {
	primary := Bill{
		Key:         testBillKey(),
		SubjectTags: []string{"Broadcasting", "culture"},
	}
	enrichment := &BillEnrichment{
		Key:         testBillKey(),
		SubjectTags: []string{"broadcasting", "telecommunications", "Culture"},
	}

	merged := MergeBill(primary, enrichment)

	// First-seen surface form wins; canonical dedup is case-insensitive.
	assert.Equal(t, []string{"Broadcasting", "culture", "telecommunications"}, merged.SubjectTags)
}

func TestMergeBillIsPure(t *testing.T) {
	primary := Bill{
		Key:         testBillKey(),
		SubjectTags: []string{"a"},
	}
	enrichment := &BillEnrichment{Key: testBillKey(), SubjectTags: []string{"b"}}

	_ = MergeBill(primary, enrichment)

	assert.Equal(t, []string{"a"}, primary.SubjectTags)
	assert.Equal(t, []string{"b"}, enrichment.SubjectTags)
	assert.False(t, primary.SourceEnrichment)
}
