// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package feedid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGUIDStableAcrossRebuilds(t *testing.T) {
	date := time.Date(2024, 2, 2, 15, 30, 0, 0, time.UTC)

	first := GUID("ca-federal", "bill", "44-1-C-11", EventIntroduced, date)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, GUID("ca-federal", "bill", "44-1-C-11", EventIntroduced, date))
	}
	assert.Equal(t, "ca-federal:bill:44-1-C-11:introduced:2024-02-02", first)
}

func TestGUIDNormalizesTimezone(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 23:00 EST is already the next day in UTC; the GUID must agree no matter
	// which zone the caller held the date in.
	local := time.Date(2024, 2, 2, 23, 0, 0, 0, est)
	utc := local.UTC()

	assert.Equal(t,
		GUID("ca-federal", "vote", "44-1-300", EventVoteHeld, utc),
		GUID("ca-federal", "vote", "44-1-300", EventVoteHeld, local),
	)
}

func TestGUIDDistinctEvents(t *testing.T) {
	date := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	a := GUID("ca-federal", "bill", "44-1-C-11", EventIntroduced, date)
	b := GUID("ca-federal", "bill", "44-1-C-11", EventRoyalAssent, date)
	assert.NotEqual(t, a, b)
}
