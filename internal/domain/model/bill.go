// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BillKey is the natural identifier of a bill.
type BillKey struct {
	Jurisdiction string `json:"jurisdiction"`
	Parliament   int    `json:"parliament"`
	Session      int    `json:"session"`
	Number       string `json:"number"`
}

// NaturalID renders the key as parliament-session-number, e.g. "44-1-C-11".
func (k BillKey) NaturalID() string {
	return fmt.Sprintf("%d-%d-%s", k.Parliament, k.Session, k.Number)
}

// String includes the jurisdiction for logging.
func (k BillKey) String() string {
	return k.Jurisdiction + ":" + k.NaturalID()
}

// ParseBillNaturalID reverses NaturalID: "44-1-C-11" splits into parliament,
// session, and the bill number (which may itself contain dashes).
func ParseBillNaturalID(jurisdiction, naturalID string) (BillKey, error) {
	parts := strings.SplitN(naturalID, "-", 3)
	if len(parts) != 3 {
		return BillKey{}, fmt.Errorf("malformed bill id %q", naturalID)
	}
	parliament, err := strconv.Atoi(parts[0])
	if err != nil {
		return BillKey{}, fmt.Errorf("malformed parliament in bill id %q", naturalID)
	}
	session, err := strconv.Atoi(parts[1])
	if err != nil {
		return BillKey{}, fmt.Errorf("malformed session in bill id %q", naturalID)
	}
	return BillKey{
		Jurisdiction: jurisdiction,
		Parliament:   parliament,
		Session:      session,
		Number:       parts[2],
	}, nil
}

// Bill represents a bill before parliament.
type Bill struct {
	ID  int64   `json:"id,omitempty"`
	Key BillKey `json:"key"`

	Title      Bilingual `json:"title"`
	ShortTitle Bilingual `json:"short_title"`

	SponsorPoliticianID *string    `json:"sponsor_politician_id,omitempty"`
	IntroducedDate      *time.Time `json:"introduced_date,omitempty"`
	Status              string     `json:"status,omitempty"`

	RoyalAssentDate    *time.Time `json:"royal_assent_date,omitempty"`
	RoyalAssentChapter *string    `json:"royal_assent_chapter,omitempty"`

	Summary     *string  `json:"summary,omitempty"`
	SubjectTags []string `json:"subject_tags,omitempty"`

	SourcePrimary    bool `json:"source_primary"`
	SourceEnrichment bool `json:"source_enrichment"`

	LastFetchedAt  *time.Time `json:"last_fetched_at,omitempty"`
	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty"`

	// Embedding is the optional fixed-dimension vector used by hybrid search.
	Embedding []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BillFilter narrows bill list queries.
type BillFilter struct {
	Jurisdiction string
	Parliament   *int
	Session      *int
	Status       *string
	// Tag matches bills carrying the subject tag (feed scopes use it).
	Tag *string
	// SponsorID matches bills sponsored by the politician.
	SponsorID *string
	// ExcludeIDs drops the device's ignored bills; totals reflect the
	// filtered count.
	ExcludeIDs []int64

	// Sort overrides the default ordering (introduced_date); Order is "asc"
	// or "desc" (default desc). Values are validated at the API boundary.
	Sort  string
	Order string
}

// BillSortFields are the orderings the list endpoint accepts.
var BillSortFields = []string{"introduced_date", "updated_at", "number"}

// BillStatuses recognized from the catalogue source. Upstream strings outside
// this set are stored as-is; the set exists for filter validation.
var BillStatuses = []string{
	"introduced",
	"first-reading",
	"second-reading",
	"committee",
	"report-stage",
	"third-reading",
	"senate",
	"royal-assent",
	"defeated",
	"withdrawn",
}
