// Package discount provides coupon validation and administration.
package discount

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/discount"
)

// ErrInvalidInput is returned for malformed discount definitions.
var ErrInvalidInput = errors.New("invalid discount input")

// Service validates coupon codes and manages discounts.
type Service struct {
	repo   *domain.Repository
	logger types.Logger
	now    func() time.Time
}

// NewService creates a new discount service.
func NewService(repo *domain.Repository, logger types.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Validate looks up code case-insensitively and checks it against subtotal.
// Rule failures are returned as the discount package sentinel errors.
func (s *Service) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validation, error) {
	if strings.TrimSpace(code) == "" {
		return nil, domain.ErrNotFound
	}
	d, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := d.Check(s.now(), subtotal); err != nil {
		return nil, err
	}
	return &Validation{
		Valid:          true,
		Code:           d.Code,
		Type:           d.Type,
		Value:          d.Value,
		DiscountAmount: d.Amount(subtotal),
		Discount:       d,
	}, nil
}

// Create adds a discount.
func (s *Service) Create(ctx context.Context, in Input) (*domain.Discount, error) {
	if in.Code == nil || domain.NormalizeCode(*in.Code) == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	if in.Type == nil || in.Value == nil {
		return nil, fmt.Errorf("%w: type and value are required", ErrInvalidInput)
	}
	now := s.now()
	d := &domain.Discount{
		ID:          uuid.NewString(),
		MinSubtotal: decimal.Zero,
		StartsAt:    now,
		ExpiresAt:   now.AddDate(1, 0, 0),
		IsActive:    true,
	}
	apply(d, in)
	if err := check(d); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info("Discount created", "code", d.Code, "type", d.Type, "value", d.Value.String())
	return d, nil
}

// Update applies the non-nil fields of in.
func (s *Service) Update(ctx context.Context, id string, in Input) (*domain.Discount, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(d, in)
	if err := check(d); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Deactivate turns a discount off without deleting its redemption history.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, false)
}

// Get returns one discount.
func (s *Service) Get(ctx context.Context, id string) (*domain.Discount, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns discounts, newest first.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Discount, error) {
	return s.repo.List(ctx, activeOnly)
}

// Redemptions lists the orders that used a discount.
func (s *Service) Redemptions(ctx context.Context, id string) ([]domain.Redemption, error) {
	return s.repo.Redemptions(ctx, id)
}

func apply(d *domain.Discount, in Input) {
	if in.Code != nil {
		d.Code = domain.NormalizeCode(*in.Code)
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if in.Type != nil {
		d.Type = *in.Type
	}
	if in.Value != nil {
		d.Value = *in.Value
	}
	if in.MinSubtotal != nil {
		d.MinSubtotal = *in.MinSubtotal
	}
	if in.StartsAt != nil {
		d.StartsAt = *in.StartsAt
	}
	if in.ExpiresAt != nil {
		d.ExpiresAt = *in.ExpiresAt
	}
	if in.MaxUses != nil {
		v := *in.MaxUses
		d.MaxUses = &v
	}
	if in.ClearMaxUses {
		d.MaxUses = nil
	}
	if in.IsActive != nil {
		d.IsActive = *in.IsActive
	}
}

func check(d *domain.Discount) error {
	switch {
	case !d.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidInput, d.Type)
	case !d.Value.IsPositive():
		return fmt.Errorf("%w: value must be positive", ErrInvalidInput)
	case d.Type == domain.TypePercentage && d.Value.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: percentage cannot exceed 100", ErrInvalidInput)
	case d.MinSubtotal.IsNegative():
		return fmt.Errorf("%w: min_subtotal cannot be negative", ErrInvalidInput)
	case !d.ExpiresAt.After(d.StartsAt):
		return fmt.Errorf("%w: expires_at must be after starts_at", ErrInvalidInput)
	case d.MaxUses != nil && *d.MaxUses < 1:
		return fmt.Errorf("%w: max_uses must be at least 1", ErrInvalidInput)
	}
	return nil
}
