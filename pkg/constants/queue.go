// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package constants

// Work-pool stream and subject layout. Each work pool is one work-queue
// stream; workers claim runs through a durable consumer named after the pool.
const (
	// WorkPoolStreamPrefix prefixes the JetStream stream name for a pool.
	WorkPoolStreamPrefix = "INGEST-POOL"

	// WorkPoolSubjectPrefix is the subject prefix run requests are published
	// under: ingest.pool.<pool-tag>.
	WorkPoolSubjectPrefix = "ingest.pool"
)
