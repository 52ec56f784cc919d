// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package uid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := NewToken(32)
		assert.Len(t, token, 64)
		assert.False(t, seen[token], "token collision")
		seen[token] = true
	}
}

func TestNewTokenDefaultsLength(t *testing.T) {
	assert.Len(t, NewToken(0), 64)
	assert.Len(t, NewToken(-1), 64)
}
