// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DebateKey is the natural identifier of a sitting's debate record (hansard).
type DebateKey struct {
	Jurisdiction string `json:"jurisdiction"`
	Parliament   int    `json:"parliament"`
	Session      int    `json:"session"`
	Number       int    `json:"number"`
}

// NaturalID renders parliament-session-number, e.g. "44-1-123".
func (k DebateKey) NaturalID() string {
	return fmt.Sprintf("%d-%d-%d", k.Parliament, k.Session, k.Number)
}

// ParseDebateNaturalID reverses NaturalID: "44-1-123".
func ParseDebateNaturalID(jurisdiction, naturalID string) (DebateKey, error) {
	parts := strings.Split(naturalID, "-")
	if len(parts) != 3 {
		return DebateKey{}, fmt.Errorf("malformed debate id %q", naturalID)
	}
	numbers := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return DebateKey{}, fmt.Errorf("malformed debate id %q", naturalID)
		}
		numbers[i] = n
	}
	return DebateKey{
		Jurisdiction: jurisdiction,
		Parliament:   numbers[0],
		Session:      numbers[1],
		Number:       numbers[2],
	}, nil
}

// Debate represents one day's debates in a chamber.
type Debate struct {
	ID  int64     `json:"id,omitempty"`
	Key DebateKey `json:"key"`

	Date       time.Time `json:"date"`
	Chamber    string    `json:"chamber"`
	DebateType string    `json:"debate_type,omitempty"`
	Topic      Bilingual `json:"topic"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DebateFilter narrows debate list queries.
type DebateFilter struct {
	Jurisdiction string
	Parliament   *int
	Session      *int
}

// Speech is one attributed intervention within a debate. Natural key
// (debate natural id, sequence). Speeches are re-synced wholesale with their
// debate.
type Speech struct {
	ID int64 `json:"id,omitempty"`

	DebateNaturalID string `json:"debate_id"`
	Sequence        int    `json:"sequence"`

	// PoliticianID is null when the speaker cannot be resolved; the display
	// name is kept either way.
	PoliticianID *string `json:"politician_id,omitempty"`
	SpeakerName  string  `json:"speaker_name"`
	Role         string  `json:"role,omitempty"`

	Language string    `json:"language,omitempty"`
	Text     Bilingual `json:"text"`

	Time *time.Time `json:"time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpeechFilter narrows speech list queries within a debate.
type SpeechFilter struct {
	DebateNaturalID string
	PoliticianID    *string
}

// WordCount counts the words of the speech in its primary language.
func (s Speech) WordCount() int {
	text := ""
	if s.Text.EN != nil {
		text = *s.Text.EN
	} else if s.Text.FR != nil {
		text = *s.Text.FR
	}
	if text == "" {
		return 0
	}
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	}))
}
