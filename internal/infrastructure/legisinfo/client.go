// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

// Package legisinfo is the enrichment adapter: it scrapes the authoritative
// bill pages for fields the catalogue lacks (subject tags, royal-assent
// chapter, full summaries).
package legisinfo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
)

// DefaultBaseURL is the public enrichment site root.
const DefaultBaseURL = "https://www.parl.ca/legisinfo"

const maxAttempts = 5

// Config holds the adapter settings.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	RateWait time.Duration
}

// Client scrapes bill pages under one shared source limiter.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *ratelimit.SourceLimiter
	rateWait   time.Duration

	retryInitial time.Duration
}

// NewClient creates an enrichment client over the shared source limiter.
func NewClient(config Config, limiter *ratelimit.SourceLimiter) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateWait <= 0 {
		config.RateWait = 60 * time.Second
	}
	return &Client{
		httpClient:   &http.Client{Timeout: config.Timeout},
		baseURL:      config.BaseURL,
		limiter:      limiter,
		rateWait:     config.RateWait,
		retryInitial: time.Second,
	}
}

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

// FetchBillEnrichment scrapes one bill's enrichment page. A missing page is a
// NotFound error for the caller to record per-record, not a batch failure.
func (c *Client) FetchBillEnrichment(ctx context.Context, key model.BillKey) (*model.BillEnrichment, error) {
	pageURL := fmt.Sprintf("%s/en/bill/%d-%d/%s",
		c.baseURL, key.Parliament, key.Session, strings.ToLower(key.Number))

	var doc *goquery.Document
	operation := func() error {
		if err := c.limiter.Acquire(ctx, c.rateWait); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return backoff.Permanent(errs.NewValidation("invalid enrichment URL", err))
		}
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
			statusErr := statusError{status: resp.StatusCode, url: pageURL}
			if transientStatus(resp.StatusCode) {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		doc, err = goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return backoff.Permanent(errs.NewValidation("enrichment page failed to parse", err))
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
		if statusErr, ok := err.(statusError); ok && statusErr.status == http.StatusNotFound {
			return nil, errs.NewNotFound("no enrichment page for bill " + key.NaturalID())
		}
		slog.WarnContext(ctx, "enrichment fetch failed",
			"url", pageURL,
			"error", err,
		)
		return nil, classify(err)
	}

	enrichment := parseBillPage(doc, key)
	enrichment.FetchedAt = time.Now().UTC()
	return enrichment, nil
}

func classify(err error) error {
	if statusErr, ok := err.(statusError); ok {
		if transientStatus(statusErr.status) {
			return errs.NewServiceUnavailable("enrichment source unavailable", err)
		}
		return errs.NewValidation("enrichment source rejected request", err)
	}
	return errs.NewServiceUnavailable("enrichment source unreachable", err)
}

// parseBillPage extracts the enrichment fields present on the page; absent
// sections simply stay null.
func parseBillPage(doc *goquery.Document, key model.BillKey) *model.BillEnrichment {
	enrichment := &model.BillEnrichment{Key: key}

	if title := strings.TrimSpace(doc.Find(".bill-title .long-title").First().Text()); title != "" {
		enrichment.Title.EN = &title
	}
	if titleFR := strings.TrimSpace(doc.Find(".bill-title .long-title-fr").First().Text()); titleFR != "" {
		enrichment.Title.FR = &titleFR
	}

	if summary := strings.TrimSpace(doc.Find(".bill-summary").First().Text()); summary != "" {
		enrichment.Summary = &summary
	}

	doc.Find(".bill-subjects li, .subject-tags a").Each(func(_ int, sel *goquery.Selection) {
		tag := strings.TrimSpace(sel.Text())
		if tag != "" {
			enrichment.SubjectTags = append(enrichment.SubjectTags, tag)
		}
	})

	if status := strings.TrimSpace(doc.Find(".bill-status .current").First().Text()); status != "" {
		enrichment.Status = &status
	}

	doc.Find(".royal-assent").Each(func(_ int, sel *goquery.Selection) {
		if chapter := strings.TrimSpace(sel.Find(".chapter").Text()); chapter != "" {
			enrichment.RoyalAssentChapter = &chapter
		}
		if date := strings.TrimSpace(sel.Find(".date").AttrOr("data-date", "")); date != "" {
			if parsed, err := time.Parse("2006-01-02", date); err == nil {
				enrichment.RoyalAssentDate = &parsed
			}
		}
	})

	return enrichment
}
