// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHashAPIKey(t *testing.T) {
	hash := HashAPIKey("test-key")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashAPIKey("test-key"))
	assert.NotEqual(t, hash, HashAPIKey("test-key2"))
}

func TestAPIKeyUsable(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		key    APIKey
		usable bool
	}{
		{"active without expiry", APIKey{Active: true}, true},
		{"active not yet expired", APIKey{Active: true, ExpiresAt: &future}, true},
		{"expired", APIKey{Active: true, ExpiresAt: &past}, false},
		{"inactive", APIKey{Active: false}, false},
		{"expires exactly now", APIKey{Active: true, ExpiresAt: &now}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.usable, tt.key.Usable(now))
		})
	}
}

func TestValidateAnonID(t *testing.T) {
	assert.NoError(t, ValidateAnonID("abcdefabcdefabcdefabcdefabcdef12"))
	assert.Error(t, ValidateAnonID("short"))
	assert.Error(t, ValidateAnonID(""))
	assert.Error(t, ValidateAnonID("white space padded to thirty-two!"))
}
