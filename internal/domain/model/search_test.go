// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHybridScore(t *testing.T) {
	// 0.7×keyword + 0.3×similarity with an embedding present.
	assert.InDelta(t, 0.76, HybridScore(0.8, 0.666667, true), 0.001)
	// Without an embedding the normalized keyword score stands alone.
	assert.Equal(t, 0.8, HybridScore(0.8, 0.9, false))
}

func TestSnippetAroundFirstMatch(t *testing.T) {
	text := strings.Repeat("x", 200) + " broadcasting act " + strings.Repeat("y", 200)

	snippet := Snippet(text, "Broadcasting", 60)

	assert.Contains(t, snippet, "broadcasting act")
	assert.True(t, strings.HasPrefix(snippet, "…"))
	assert.True(t, strings.HasSuffix(snippet, "…"))
	// ±60 runes around the match start plus the two ellipses.
	assert.LessOrEqual(t, len([]rune(snippet)), 60*2+2)
}

func TestSnippetShortText(t *testing.T) {
	snippet := Snippet("An Act respecting online streaming", "streaming", 60)
	assert.Equal(t, "An Act respecting online streaming", snippet)
}

func TestSnippetNoMatchLeadsWithHead(t *testing.T) {
	snippet := Snippet("An Act respecting online streaming", "fisheries", 10)
	assert.True(t, strings.HasPrefix(snippet, "An Act"))
}

func TestSnippetEmptyInputs(t *testing.T) {
	assert.Empty(t, Snippet("", "q", 60))
	assert.Empty(t, Snippet("text", "", 60))
}
