// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"regexp"
	"time"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

var anonIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]{32,128}$`)

// ValidateAnonID checks the X-Anon-Id header shape: 32-128 characters,
// alphanumeric plus dash.
func ValidateAnonID(deviceID string) error {
	if !anonIDPattern.MatchString(deviceID) {
		return errs.NewValidation("device identifier must be 32-128 characters of [A-Za-z0-9-]")
	}
	return nil
}

// IgnoredBill marks a bill a device does not want to see. Unique per
// (device, bill) pair.
type IgnoredBill struct {
	DeviceID  string    `json:"device_id"`
	BillID    int64     `json:"bill_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedToken maps an opaque token to a device for personalized feeds. No
// account exists behind it; revocation deletes the row.
type FeedToken struct {
	Token    string `json:"token"`
	DeviceID string `json:"device_id"`

	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	AccessCount    int64      `json:"access_count"`
}
