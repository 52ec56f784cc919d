// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
)

// PreferenceRepository stores device-scoped personalization: ignored bills
// and personalized feed tokens. Never linked to an account; there is none.
type PreferenceRepository interface {
	// AddIgnore records (device, bill) idempotently.
	AddIgnore(ctx context.Context, deviceID string, billID int64) error

	// RemoveIgnore deletes the pair; removing an absent pair is a no-op.
	RemoveIgnore(ctx context.Context, deviceID string, billID int64) error

	// ListIgnored returns the device's ignored bill IDs.
	ListIgnored(ctx context.Context, deviceID string) ([]int64, error)

	// CreateToken stores a new feed token for the device.
	CreateToken(ctx context.Context, token model.FeedToken) (*model.FeedToken, error)

	// ResolveToken maps a token to its record, bumping last_accessed and the
	// access count. Unknown or revoked tokens yield NotFound.
	ResolveToken(ctx context.Context, token string) (*model.FeedToken, error)

	// RevokeToken deletes the mapping.
	RevokeToken(ctx context.Context, token string) error
}
