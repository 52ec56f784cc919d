// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package errors defines the typed error taxonomy used across the service.
// Services and repositories return these types; the HTTP layer maps them to
// status codes at the outer edge.
package errors

// base holds the shared fields of all typed errors.
type base struct {
	message string
	err     error
}

// error renders the message, appending the joined causes when present.
func (b base) error() string {
	if b.err != nil {
		return b.message + ": " + b.err.Error()
	}
	return b.message
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (b base) Unwrap() error {
	return b.err
}
