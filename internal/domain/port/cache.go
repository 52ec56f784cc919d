// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"
	"time"
)

// Cache is keyed TTL storage for feed bodies, search results, and task
// results. Losing the cache never affects correctness, only latency.
type Cache interface {
	// Get returns the stored bytes, or a NotFound error when absent/expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl. Concurrent writers to the same key
	// resolve to one winner; losers are no-ops.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the key; deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
