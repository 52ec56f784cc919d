// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import "context"

// ReadinessChecker is implemented by infrastructure clients that can probe
// their dependency. The health endpoint and worker startup both use it.
type ReadinessChecker interface {
	IsReady(ctx context.Context) error
}
