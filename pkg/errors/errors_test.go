// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "validation without cause",
			err:      NewValidation("bad input"),
			expected: "bad input",
		},
		{
			name:     "not found with cause",
			err:      NewNotFound("bill not found", cause),
			expected: "bill not found: boom",
		},
		{
			name:     "conflict",
			err:      NewConflict("token already exists"),
			expected: "token already exists",
		},
		{
			name:     "unauthorized",
			err:      NewUnauthorized("invalid API key"),
			expected: "invalid API key",
		},
		{
			name:     "unexpected with cause",
			err:      NewUnexpected("query failed", cause),
			expected: "query failed: boom",
		},
		{
			name:     "service unavailable",
			err:      NewServiceUnavailable("store unreachable"),
			expected: "store unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestRateLimitedRetryAfter(t *testing.T) {
	err := NewRateLimited("too many requests", 42*time.Second)
	assert.Equal(t, 42*time.Second, err.RetryAfter)
	assert.Equal(t, "too many requests", err.Error())
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewServiceUnavailable("upstream down", cause)
	assert.True(t, stderrors.Is(err, cause))
}
