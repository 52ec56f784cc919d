// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package port

import "context"

// Embedder turns text into the fixed-dimension vectors used by hybrid search.
// The concrete model is deliberately not fixed here; deployments without one
// run keyword-only search.
type Embedder interface {
	// Embed returns one vector per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions reports the vector width the store column must match.
	Dimensions() int
}
