// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package openparliament is the catalogue adapter: typed fetches over the
// public JSON API, rate limited through one shared token bucket and retried
// with exponential backoff on transient failures.
package openparliament

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// DefaultBaseURL is the public catalogue API root.
const DefaultBaseURL = "https://api.openparliament.ca"

const maxAttempts = 5

// Config holds the adapter settings.
type Config struct {
	BaseURL string
	// Timeout is the hard per-request timeout.
	Timeout time.Duration
	// RateWait bounds how long a request may wait for a rate-limit token.
	RateWait time.Duration
}

// Client is the shared HTTP client behind every catalogue fetcher. All
// instances must share one limiter; the constructor takes it rather than
// building its own.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.SourceLimiter
	rateWait   time.Duration

	// retryInitial seeds the backoff policy; tests shrink it.
	retryInitial time.Duration
}

// NewClient creates a catalogue client over the shared source limiter.
func NewClient(config Config, limiter *ratelimit.SourceLimiter) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateWait <= 0 {
		config.RateWait = 30 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: config.Timeout},
		baseURL:      config.BaseURL,
		limiter:      limiter,
		rateWait:     config.RateWait,
		retryInitial: time.Second,
	}
}

// statusError carries the HTTP status for retry classification.
type statusError struct {
	status int
	url    string
}

func (e statusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.url, e.status)
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// getJSON fetches one URL, decodes into out, and returns the provenance stub.
// Transient failures (network, 5xx, 429, rate-wait timeout) are retried with
// exponential backoff up to 5 attempts capped at 60s between tries; other 4xx
// and decode failures are terminal.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) (model.Provenance, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var body []byte
	operation := func() error {
		if err := c.limiter.Acquire(ctx, c.rateWait); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return backoff.Permanent(errs.NewValidation("invalid catalogue URL", err))
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", constants.ServiceName)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			statusErr := statusError{status: resp.StatusCode, url: fullURL}
			if transientStatus(resp.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInitial
	policy.MaxInterval = 60 * time.Second
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
	if err != nil {
		slog.WarnContext(ctx, "catalogue fetch failed",
			"url", fullURL,
			"error", err,
		)
		return model.Provenance{}, classify(err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return model.Provenance{}, errs.NewValidation("catalogue response failed schema decode", err)
	}

	hash := sha256.Sum256(body)
	return model.Provenance{
		SourceURL:   fullURL,
		FetchedAt:   time.Now().UTC(),
		ContentHash: hex.EncodeToString(hash[:]),
	}, nil
}

// classify maps a post-retry failure into the adapter error taxonomy:
// exhausted transient errors become ServiceUnavailable, terminal 4xx become
// Validation.
func classify(err error) error {
	if statusErr, ok := err.(statusError); ok {
		if transientStatus(statusErr.status) {
			return errs.NewServiceUnavailable("catalogue source unavailable", err)
		}
		return errs.NewValidation("catalogue rejected request", err)
	}
	return errs.NewServiceUnavailable("catalogue source unreachable", err)
}

// listEnvelope is the catalogue's standard paginated list shape.
type listEnvelope struct {
	Objects    json.RawMessage `json:"objects"`
	Pagination struct {
		Count  *int `json:"count"`
		Limit  int  `json:"limit"`
		Offset int  `json:"offset"`
	} `json:"pagination"`
}

// clampPage applies the catalogue pagination contract: default 50, max 100.
func clampPage(page int) int {
	if page <= 0 {
		return constants.DefaultFetchLimit
	}
	if page > constants.MaxFetchLimit {
		return constants.MaxFetchLimit
	}
	return page
}

func pageParams(limit, offset int) url.Values {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", clampPage(limit)))
	params.Set("offset", fmt.Sprintf("%d", offset))
	params.Set("format", "json")
	return params
}

// totalOrUnknown maps an absent upstream count to -1, the signal to continue
// paginating until an empty page.
func totalOrUnknown(count *int) int {
	if count == nil {
		return -1
	}
	return *count
}
