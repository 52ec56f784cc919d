// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package paging implements the list pagination contract shared by the API
// layer and the repositories.
package paging

import (
	"fmt"
	"strconv"

	errs "github.com/truecivic/parliament-service/pkg/errors"
)

// Params is a validated limit/offset pair.
type Params struct {
	Limit  int
	Offset int
}

// Parse validates raw limit/offset query values against the given defaults.
// Empty strings take the default; limit=0 is legal and yields an empty page.
func Parse(rawLimit, rawOffset string, defaultLimit, maxLimit int) (Params, error) {
	p := Params{Limit: defaultLimit}

	if rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil {
			return p, errs.NewValidation("limit must be an integer")
		}
		if limit < 0 || limit > maxLimit {
			return p, errs.NewValidation(fmt.Sprintf("limit must be between 0 and %d", maxLimit))
		}
		p.Limit = limit
	}

	if rawOffset != "" {
		offset, err := strconv.Atoi(rawOffset)
		if err != nil {
			return p, errs.NewValidation("offset must be an integer")
		}
		if offset < 0 {
			return p, errs.NewValidation("offset must not be negative")
		}
		p.Offset = offset
	}

	return p, nil
}

// Page is the wire shape of every list response.
type Page[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewPage assembles a page, deriving has_more from the window position.
func NewPage[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:   items,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: p.Offset+len(items) < total,
	}
}
