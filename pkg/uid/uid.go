// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package uid generates surrogate identifiers and opaque tokens.
package uid

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// New returns a new random UUID string.
func New() string {
	return uuid.New().String()
}

// NewToken returns an opaque URL-safe token of 2*n hex characters built from
// n bytes of crypto/rand entropy. Raw API keys and personalized feed tokens
// are minted through this.
func NewToken(n int) string {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a UUID
		// pair rather than returning a guessable value.
		return uuid.New().String() + uuid.New().String()
	}
	return hex.EncodeToString(buf)
}
