// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import (
	"context"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/paging"
)

// FetchLogRepository records ingestion operations. Append-only.
type FetchLogRepository interface {
	// Append persists one fetch log entry and returns it with its ID.
	Append(ctx context.Context, entry model.FetchLog) (*model.FetchLog, error)

	// GetByFilter lists entries newest first.
	GetByFilter(ctx context.Context, filter model.FetchLogFilter, page paging.Params) ([]model.FetchLog, int, error)
}
