// Copyright The TrueCivic Authors.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"

	"github.com/truecivic/parliament-service/internal/domain/model"
	"github.com/truecivic/parliament-service/internal/domain/port"
	"github.com/truecivic/parliament-service/pkg/constants"
	errs "github.com/truecivic/parliament-service/pkg/errors"
	"github.com/truecivic/parliament-service/pkg/redaction"
	"github.com/truecivic/parliament-service/pkg/uid"
)

// PreferenceService owns device-scoped personalization: ignore lists and
// personalized feed tokens. Devices are opaque identifiers; there is no
// account behind them.
type PreferenceService interface {
	// IgnoreBill records an ignore for a bill by natural ID, idempotently.
	IgnoreBill(ctx context.Context, deviceID, jurisdiction, billNaturalID string) error

	// UnignoreBill removes the ignore.
	UnignoreBill(ctx context.Context, deviceID, jurisdiction, billNaturalID string) error

	// ListIgnored returns the device's ignored bills.
	ListIgnored(ctx context.Context, deviceID string) ([]model.Bill, error)

	// IgnoredIDs returns the device's ignored internal bill IDs for list
	// filtering.
	IgnoredIDs(ctx context.Context, deviceID string) ([]int64, error)

	// CreateFeedToken mints a personalized feed token for the device,
	// returned exactly once.
	CreateFeedToken(ctx context.Context, deviceID string) (*model.FeedToken, error)

	// ResolveFeedToken maps a token back to its device.
	ResolveFeedToken(ctx context.Context, token string) (*model.FeedToken, error)

	// RevokeFeedToken deletes the mapping.
	RevokeFeedToken(ctx context.Context, token string) error
}

type preferenceServiceOption func(*preferenceService)

// WithPreferenceRepository sets the preference repository.
func WithPreferenceRepository(repo port.PreferenceRepository) preferenceServiceOption {
	return func(s *preferenceService) {
		s.preferences = repo
	}
}

// WithPreferenceBillRepository sets the bill repository used to resolve
// natural IDs.
func WithPreferenceBillRepository(repo port.BillRepository) preferenceServiceOption {
	return func(s *preferenceService) {
		s.bills = repo
	}
}

type preferenceService struct {
	preferences port.PreferenceRepository
	bills       port.BillRepository
}

// NewPreferenceService creates the service using the option pattern.
func NewPreferenceService(opts ...preferenceServiceOption) PreferenceService {
	s := &preferenceService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *preferenceService) resolveBill(ctx context.Context, jurisdiction, billNaturalID string) (*model.Bill, error) {
	key, err := model.ParseBillNaturalID(jurisdiction, billNaturalID)
	if err != nil {
		return nil, errs.NewValidation("invalid bill id", err)
	}
	return s.bills.GetByNaturalKey(ctx, key)
}

// IgnoreBill records an ignore for the device.
func (s *preferenceService) IgnoreBill(ctx context.Context, deviceID, jurisdiction, billNaturalID string) error {
	if err := model.ValidateAnonID(deviceID); err != nil {
		return err
	}
	bill, err := s.resolveBill(ctx, jurisdiction, billNaturalID)
	if err != nil {
		return err
	}

	if err := s.preferences.AddIgnore(ctx, deviceID, bill.ID); err != nil {
		return err
	}
	slog.DebugContext(ctx, "bill ignored",
		"device", redaction.Redact(deviceID),
		"bill", billNaturalID,
	)
	return nil
}

// UnignoreBill removes the ignore.
func (s *preferenceService) UnignoreBill(ctx context.Context, deviceID, jurisdiction, billNaturalID string) error {
	if err := model.ValidateAnonID(deviceID); err != nil {
		return err
	}
	bill, err := s.resolveBill(ctx, jurisdiction, billNaturalID)
	if err != nil {
		return err
	}
	return s.preferences.RemoveIgnore(ctx, deviceID, bill.ID)
}

// ListIgnored returns the ignored bills as full records.
func (s *preferenceService) ListIgnored(ctx context.Context, deviceID string) ([]model.Bill, error) {
	if err := model.ValidateAnonID(deviceID); err != nil {
		return nil, err
	}
	ids, err := s.preferences.ListIgnored(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Bill{}, nil
	}
	return s.bills.GetByIDs(ctx, ids)
}

// IgnoredIDs returns the raw ignored ID set.
func (s *preferenceService) IgnoredIDs(ctx context.Context, deviceID string) ([]int64, error) {
	if deviceID == "" {
		return nil, nil
	}
	if err := model.ValidateAnonID(deviceID); err != nil {
		return nil, err
	}
	return s.preferences.ListIgnored(ctx, deviceID)
}

// CreateFeedToken mints a token for the device.
func (s *preferenceService) CreateFeedToken(ctx context.Context, deviceID string) (*model.FeedToken, error) {
	if err := model.ValidateAnonID(deviceID); err != nil {
		return nil, err
	}

	token := model.FeedToken{
		Token:    uid.NewToken(constants.FeedTokenMinLength),
		DeviceID: deviceID,
	}
	created, err := s.preferences.CreateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "feed token created",
		"device", redaction.Redact(deviceID),
		"token", redaction.Redact(created.Token),
	)
	return created, nil
}

// ResolveFeedToken maps a token back to its device.
func (s *preferenceService) ResolveFeedToken(ctx context.Context, token string) (*model.FeedToken, error) {
	if len(token) < constants.FeedTokenMinLength {
		return nil, errs.NewNotFound("unknown feed token")
	}
	return s.preferences.ResolveToken(ctx, token)
}

// RevokeFeedToken deletes the mapping.
func (s *preferenceService) RevokeFeedToken(ctx context.Context, token string) error {
	return s.preferences.RevokeToken(ctx, token)
}
