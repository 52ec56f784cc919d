// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VoteResult is the outcome of a division.
type VoteResult string

const (
	VotePassed   VoteResult = "Passed"
	VoteDefeated VoteResult = "Defeated"
	VoteTied     VoteResult = "Tied"
)

// ValidVoteResult reports whether s is a recognized result value.
func ValidVoteResult(s string) bool {
	switch VoteResult(s) {
	case VotePassed, VoteDefeated, VoteTied:
		return true
	}
	return false
}

// VoteKey is the natural identifier of a vote (division).
type VoteKey struct {
	Jurisdiction string `json:"jurisdiction"`
	Parliament   int    `json:"parliament"`
	Session      int    `json:"session"`
	Number       int    `json:"number"`
}

// NaturalID renders parliament-session-number, e.g. "44-1-300".
func (k VoteKey) NaturalID() string {
	return fmt.Sprintf("%d-%d-%d", k.Parliament, k.Session, k.Number)
}

// String includes the jurisdiction for logging.
func (k VoteKey) String() string {
	return k.Jurisdiction + ":" + k.NaturalID()
}

// ParseVoteNaturalID reverses NaturalID: "44-1-300".
func ParseVoteNaturalID(jurisdiction, naturalID string) (VoteKey, error) {
	parts := strings.Split(naturalID, "-")
	if len(parts) != 3 {
		return VoteKey{}, fmt.Errorf("malformed vote id %q", naturalID)
	}
	numbers := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return VoteKey{}, fmt.Errorf("malformed vote id %q", naturalID)
		}
		numbers[i] = n
	}
	return VoteKey{
		Jurisdiction: jurisdiction,
		Parliament:   numbers[0],
		Session:      numbers[1],
		Number:       numbers[2],
	}, nil
}

// Vote represents a recorded division in a chamber.
type Vote struct {
	ID  int64   `json:"id,omitempty"`
	Key VoteKey `json:"key"`

	Date        time.Time  `json:"date"`
	Chamber     string     `json:"chamber"`
	Description Bilingual  `json:"description"`
	Result      VoteResult `json:"result"`

	Yeas        int `json:"yeas"`
	Nays        int `json:"nays"`
	Abstentions int `json:"abstentions"`

	// BillNumber is the natural reference to the bill under vote, when any.
	// It resolves to BillID at persist time or stays null; dangling surrogate
	// references are not stored.
	BillNumber *string `json:"bill_number,omitempty"`
	BillID     *int64  `json:"bill_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BallotPosition is how a single member voted.
type BallotPosition string

const (
	BallotYea     BallotPosition = "Yea"
	BallotNay     BallotPosition = "Nay"
	BallotPaired  BallotPosition = "Paired"
	BallotAbstain BallotPosition = "Abstain"
)

// ValidBallotPosition reports whether s is a recognized position value.
func ValidBallotPosition(s string) bool {
	switch BallotPosition(s) {
	case BallotYea, BallotNay, BallotPaired, BallotAbstain:
		return true
	}
	return false
}

// VoteRecord is one member's ballot on one vote. Natural key
// (vote natural id, politician id).
type VoteRecord struct {
	ID int64 `json:"id,omitempty"`

	VoteNaturalID string `json:"vote_id"`
	PoliticianID  string `json:"politician_id"`

	Position BallotPosition `json:"position"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VoteFilter narrows vote list queries.
type VoteFilter struct {
	Jurisdiction string
	Parliament   *int
	Session      *int
	BillID       *int64
	Result       *VoteResult
}

// TallyMismatch describes a reconciliation failure between a vote's tallies
// and its individual ballots.
type TallyMismatch struct {
	VoteID      string `json:"vote_id"`
	Position    string `json:"position"`
	TallyCount  int    `json:"tally_count"`
	BallotCount int    `json:"ballot_count"`
	Tolerance   int    `json:"tolerance"`
}

func (m TallyMismatch) String() string {
	return fmt.Sprintf("vote %s: %s ballots=%d tally=%d tolerance=%d",
		m.VoteID, m.Position, m.BallotCount, m.TallyCount, m.Tolerance)
}

// ReconcileTallies compares ballot counts with the vote's declared tallies.
// Paired ballots make both sides ambiguous upstream, so the paired count is
// the tolerance band. Mismatches are loggable, never fatal: the records are
// persisted either way and both numbers remain visible.
func ReconcileTallies(vote *Vote, records []VoteRecord) []TallyMismatch {
	var yeas, nays, abstains, paired int
	for _, r := range records {
		switch r.Position {
		case BallotYea:
			yeas++
		case BallotNay:
			nays++
		case BallotAbstain:
			abstains++
		case BallotPaired:
			paired++
		}
	}

	// A vote with no ballots yet is not a mismatch; records may arrive later.
	if len(records) == 0 {
		return nil
	}

	var mismatches []TallyMismatch
	check := func(position string, ballots, tally int) {
		diff := ballots - tally
		if diff < 0 {
			diff = -diff
		}
		if diff > paired {
			mismatches = append(mismatches, TallyMismatch{
				VoteID:      vote.Key.NaturalID(),
				Position:    position,
				TallyCount:  tally,
				BallotCount: ballots,
				Tolerance:   paired,
			})
		}
	}

	check(string(BallotYea), yeas, vote.Yeas)
	check(string(BallotNay), nays, vote.Nays)
	check(string(BallotAbstain), abstains, vote.Abstentions)

	return mismatches
}
