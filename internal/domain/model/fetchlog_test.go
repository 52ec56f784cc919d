// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFetch(t *testing.T) {
	assert.Equal(t, FetchSuccess, ClassifyFetch(50, 0))
	assert.Equal(t, FetchPartial, ClassifyFetch(47, 3))
	assert.Equal(t, FetchFailure, ClassifyFetch(0, 3))
	assert.Equal(t, FetchFailure, ClassifyFetch(0, 0))
}

func TestSummarizeErrors(t *testing.T) {
	var errs []error
	for i := 0; i < 3; i++ {
		errs = append(errs, errors.New("parse error: missing number"))
	}
	errs = append(errs, errors.New("upstream 404"), nil)

	summary := SummarizeErrors(errs, 10)

	assert.Len(t, summary.Samples, 2)
	assert.Equal(t, "parse error: missing number", summary.Samples[0].Message)
	assert.Equal(t, 3, summary.Samples[0].Count)
	assert.Equal(t, "upstream 404", summary.Samples[1].Message)
	assert.Equal(t, 1, summary.Samples[1].Count)
	assert.Zero(t, summary.Dropped)
}

func TestSummarizeErrorsCapsUnique(t *testing.T) {
	var errs []error
	for i := 0; i < 15; i++ {
		errs = append(errs, fmt.Errorf("error %d", i))
	}

	summary := SummarizeErrors(errs, 10)

	assert.Len(t, summary.Samples, 10)
	assert.Equal(t, 5, summary.Dropped)
	// First-seen order is preserved.
	assert.Equal(t, "error 0", summary.Samples[0].Message)
}
