// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/ratelimit"
	"github.com/truecivic/parliament-service/pkg/redaction"
	"github.com/truecivic/parliament-service/pkg/uid"
)

// usage buffering thresholds: counters flush on whichever comes first.
const (
	usageFlushInterval = 30 * time.Second
	usageFlushHits     = 100
)

// APIKeyService owns the key lifecycle and request authentication.
type APIKeyService interface {
	// Create mints a key and returns the raw value exactly once; only the
	// hash is stored.
	Create(ctx context.Context, name string, requestsPerHour int, expiresAt *time.Time) (string, *model.APIKey, error)

	// Authenticate validates a raw key and applies its rate limit. The
	// decision carries the X-RateLimit-* header values either way.
	Authenticate(ctx context.Context, rawKey string) (*model.APIKey, ratelimit.Decision, error)

	// List returns every key, newest first.
	List(ctx context.Context) ([]model.APIKey, error)

	// UpdateLimit changes a key's hourly budget.
	UpdateLimit(ctx context.Context, id int64, requestsPerHour int) (*model.APIKey, error)

	// SetActive activates or deactivates a key.
	SetActive(ctx context.Context, id int64, active bool) (*model.APIKey, error)

	// Delete removes a key permanently.
	Delete(ctx context.Context, id int64) error

	// FlushUsage pushes buffered usage counters to the store.
	FlushUsage(ctx context.Context)
}

type apiKeyServiceOption func(*apiKeyService)

// WithAPIKeyRepository sets the key repository.
func WithAPIKeyRepository(repo port.APIKeyRepository) apiKeyServiceOption {
	return func(s *apiKeyService) {
		s.keys = repo
	}
}

// WithAPIKeyLimiter sets the per-key rate-limit registry.
func WithAPIKeyLimiter(registry *ratelimit.Registry) apiKeyServiceOption {
	return func(s *apiKeyService) {
		s.limiter = registry
	}
}

type usageEntry struct {
	requests int64
	lastUsed time.Time
}

type apiKeyService struct {
	keys    port.APIKeyRepository
	limiter *ratelimit.Registry

	mu           sync.Mutex
	usage        map[int64]*usageEntry
	bufferedHits int64
	lastFlush    time.Time

	now func() time.Time
}

// NewAPIKeyService creates the service using the option pattern.
func NewAPIKeyService(opts ...apiKeyServiceOption) APIKeyService {
	s := &apiKeyService{
		usage:     make(map[int64]*usageEntry),
		lastFlush: time.Now(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a key and returns the raw value exactly once.
func (s *apiKeyService) Create(ctx context.Context, name string, requestsPerHour int, expiresAt *time.Time) (string, *model.APIKey, error) {
	if name == "" {
		return "", nil, errs.NewValidation("key name is required")
	}
	if requestsPerHour <= 0 {
		requestsPerHour = 1000
	}

	rawKey := "pk_" + uid.NewToken(32)
	key := model.APIKey{
		Name:            name,
		KeyHash:         model.HashAPIKey(rawKey),
		Active:          true,
		RequestsPerHour: requestsPerHour,
		ExpiresAt:       expiresAt,
	}

	created, err := s.keys.Create(ctx, key)
	if err != nil {
		return "", nil, err
	}

	slog.InfoContext(ctx, "API key created",
		"name", name,
		"key", redaction.Redact(rawKey),
		"requests_per_hour", requestsPerHour,
	)
	return rawKey, created, nil
}

// Authenticate validates the raw key and applies the per-key bucket.
func (s *apiKeyService) Authenticate(ctx context.Context, rawKey string) (*model.APIKey, ratelimit.Decision, error) {
	if rawKey == "" {
		return nil, ratelimit.Decision{}, errs.NewUnauthorized("missing API key")
	}

	key, err := s.keys.GetByHash(ctx, model.HashAPIKey(rawKey))
	if err != nil {
		var notFound errs.NotFound
		if errors.As(err, &notFound) {
			return nil, ratelimit.Decision{}, errs.NewUnauthorized("invalid API key")
		}
		return nil, ratelimit.Decision{}, err
	}

	// Expiry is checked at validation time only; a key expiring mid-request
	// still completes that request.
	if !key.Usable(s.now()) {
		return nil, ratelimit.Decision{}, errs.NewUnauthorized("API key is expired or inactive")
	}

	decision := s.limiter.Allow(key.KeyHash, key.RequestsPerHour)
	if !decision.Allowed {
		return key, decision, errs.NewRateLimited("API key rate limit exceeded", decision.RetryAfter)
	}

	s.recordUsage(ctx, key.ID)
	return key, decision, nil
}

// recordUsage buffers a hit and flushes when thresholds pass.
func (s *apiKeyService) recordUsage(ctx context.Context, id int64) {
	s.mu.Lock()
	entry, ok := s.usage[id]
	if !ok {
		entry = &usageEntry{}
		s.usage[id] = entry
	}
	entry.requests++
	entry.lastUsed = s.now()
	s.bufferedHits++
	flush := s.bufferedHits >= usageFlushHits || s.now().Sub(s.lastFlush) >= usageFlushInterval
	s.mu.Unlock()

	if flush {
		s.FlushUsage(ctx)
	}
}

// FlushUsage pushes buffered counters to the store.
func (s *apiKeyService) FlushUsage(ctx context.Context) {
	s.mu.Lock()
	pending := s.usage
	s.usage = make(map[int64]*usageEntry)
	s.bufferedHits = 0
	s.lastFlush = s.now()
	s.mu.Unlock()

	for id, entry := range pending {
		if err := s.keys.RecordUsage(ctx, id, entry.requests, entry.lastUsed); err != nil {
			slog.ErrorContext(ctx, "failed to flush API key usage",
				"key_id", id,
				"error", err,
			)
		}
	}
}

// List returns every key.
func (s *apiKeyService) List(ctx context.Context) ([]model.APIKey, error) {
	return s.keys.List(ctx)
}

// UpdateLimit changes a key's hourly budget.
func (s *apiKeyService) UpdateLimit(ctx context.Context, id int64, requestsPerHour int) (*model.APIKey, error) {
	if requestsPerHour <= 0 {
		return nil, errs.NewValidation("requests per hour must be positive")
	}
	key, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key.RequestsPerHour = requestsPerHour
	return s.keys.Update(ctx, *key)
}

// SetActive activates or deactivates a key.
func (s *apiKeyService) SetActive(ctx context.Context, id int64, active bool) (*model.APIKey, error) {
	key, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}
	key.Active = active
	return s.keys.Update(ctx, *key)
}

// Delete removes a key.
func (s *apiKeyService) Delete(ctx context.Context, id int64) error {
	return s.keys.Delete(ctx, id)
}

func (s *apiKeyService) findByID(ctx context.Context, id int64) (*model.APIKey, error) {
	keys, err := s.keys.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		if keys[i].ID == id {
			return &keys[i], nil
		}
	}
	return nil, errs.NewNotFound("API key not found")
}
