// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"strings"
)

// BillSearchHit is one search result with its scores and snippet.
type BillSearchHit struct {
	Bill Bill `json:"bill"`

	// KeywordScore is normalized to [0,1] across the result page.
	KeywordScore float64 `json:"keyword_score"`
	// SimilarityScore is cosine similarity against the query embedding, zero
	// when either side has no embedding.
	SimilarityScore float64 `json:"similarity_score"`
	// Score is the final ranking value: hybrid when embeddings are present,
	// otherwise the normalized keyword score.
	Score float64 `json:"score"`

	Snippet string `json:"snippet,omitempty"`
}

// SpeechSearchHit is one debate/speech search result.
type SpeechSearchHit struct {
	Speech  Speech  `json:"speech"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet,omitempty"`
}

// Hybrid ranking weights.
const (
	HybridWeightKeyword = 0.7
	HybridWeightVector  = 0.3
)

// HybridScore combines a normalized keyword score with a similarity score.
// Rows without embeddings fall back to the keyword score alone.
func HybridScore(keywordNormalized, similarity float64, hasEmbedding bool) float64 {
	if !hasEmbedding {
		return keywordNormalized
	}
	return HybridWeightKeyword*keywordNormalized + HybridWeightVector*similarity
}

// Snippet extracts ±window runes around the first case-insensitive occurrence
// of any query term inside text.
func Snippet(text, query string, window int) string {
	if text == "" || query == "" {
		return ""
	}
	if window <= 0 {
		window = 60
	}

	lowerRunes := []rune(strings.ToLower(text))
	pos := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if idx := runeIndex(lowerRunes, []rune(term)); idx >= 0 && (pos < 0 || idx < pos) {
			pos = idx
		}
	}
	if pos < 0 {
		// No term found; lead with the head of the text.
		pos = 0
	}

	runes := []rune(text)
	start := pos - window
	if start < 0 {
		start = 0
	}
	end := pos + window
	if end > len(runes) {
		end = len(runes)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(runes) {
		snippet += "…"
	}
	return snippet
}

// runeIndex finds needle in haystack at rune granularity so the surrounding
// window never splits a multibyte character.
func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
