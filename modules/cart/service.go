// Package cart provides the session cart engine.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/cart"
	discountdomain "github.com/wighaven/storefront/domain/discount"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/discount"
)

// ErrVariantUnavailable is returned when adding a missing or inactive variant.
var ErrVariantUnavailable = errors.New("variant is not available")

// maxSaveAttempts bounds optimistic retries when two requests race on one cart.
const maxSaveAttempts = 5

// VariantSource supplies live variant data.
type VariantSource interface {
	GetVariants(ctx context.Context, ids []string) (map[string]catalog.VariantInfo, error)
}

// CouponValidator checks coupon codes against a subtotal.
type CouponValidator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*discount.Validation, error)
}

// Service implements the cart operations. Every mutation returns a freshly
// priced snapshot.
type Service struct {
	store    Store
	variants VariantSource
	coupons  CouponValidator
	newID    func() string
	logger   types.Logger
	now      func() time.Time
}

// NewService creates a new cart service.
func NewService(store Store, variants VariantSource, coupons CouponValidator, newID func() string, logger types.Logger) *Service {
	return &Service{
		store:    store,
		variants: variants,
		coupons:  coupons,
		newID:    newID,
		logger:   logger,
		now:      time.Now,
	}
}

// Create starts an empty cart session.
func (s *Service) Create(ctx context.Context, userID string) (*Snapshot, error) {
	c := domain.New(s.newID(), s.now())
	c.UserID = userID
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Debug("Cart created", "cartId", c.ID)
	return s.snapshot(ctx, c)
}

// Get returns the current snapshot of a cart.
func (s *Service) Get(ctx context.Context, id string) (*Snapshot, error) {
	c, _, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, c)
}

// Load returns the raw cart for checkout.
func (s *Service) Load(ctx context.Context, id string) (*domain.Cart, error) {
	c, _, err := s.store.Load(ctx, id)
	return c, err
}

// AddItem adds quantity units of a variant, merging with an existing line.
func (s *Service) AddItem(ctx context.Context, id, variantID string, quantity int) (*Snapshot, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	infos, err := s.variants.GetVariants(ctx, []string{variantID})
	if err != nil {
		return nil, err
	}
	info, ok := infos[variantID]
	if !ok || !info.Available {
		return nil, fmt.Errorf("%w: %s", ErrVariantUnavailable, variantID)
	}
	return s.mutate(ctx, id, func(c *domain.Cart) error {
		_, err := c.Add(domain.Item{
			VariantID:    info.VariantID,
			ProductID:    info.ProductID,
			ProductName:  info.ProductName,
			VariantLabel: info.Label,
			SKU:          info.SKU,
			Images:       info.Images,
			UnitPrice:    info.Price,
			Quantity:     quantity,
		}, s.now())
		return err
	})
}

// UpdateQuantity sets a line's quantity. Quantities below 1 are rejected.
func (s *Service) UpdateQuantity(ctx context.Context, id, itemID string, quantity int) (*Snapshot, error) {
	return s.mutate(ctx, id, func(c *domain.Cart) error {
		return c.UpdateQuantity(itemID, quantity, s.now())
	})
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, id, itemID string) (*Snapshot, error) {
	return s.mutate(ctx, id, func(c *domain.Cart) error {
		return c.Remove(itemID, s.now())
	})
}

// ApplyCoupon validates code against the current subtotal and attaches it.
// An invalid code leaves the cart unchanged and returns the rule error.
func (s *Service) ApplyCoupon(ctx context.Context, id, code string) (*Snapshot, error) {
	return s.mutate(ctx, id, func(c *domain.Cart) error {
		v, err := s.coupons.Validate(ctx, code, c.Subtotal())
		if err != nil {
			return err
		}
		c.CouponCode = v.Code
		c.UpdatedAt = s.now()
		return nil
	})
}

// RemoveCoupon detaches any coupon.
func (s *Service) RemoveCoupon(ctx context.Context, id string) (*Snapshot, error) {
	return s.mutate(ctx, id, func(c *domain.Cart) error {
		c.CouponCode = ""
		c.UpdatedAt = s.now()
		return nil
	})
}

// Clear empties the cart and drops its coupon.
func (s *Service) Clear(ctx context.Context, id string) (*Snapshot, error) {
	return s.mutate(ctx, id, func(c *domain.Cart) error {
		c.Clear(s.now())
		return nil
	})
}

// Delete discards the cart session.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// mutate loads, changes and saves a cart, retrying on concurrent writes.
func (s *Service) mutate(ctx context.Context, id string, fn func(c *domain.Cart) error) (*Snapshot, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		c, rev, err := s.store.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(c); err != nil {
			return nil, err
		}
		err = s.store.Save(ctx, c, rev)
		if err == nil {
			return s.snapshot(ctx, c)
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		s.logger.Debug("Cart revision mismatch, retrying", "cartId", id, "attempt", attempt)
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts", ErrConflict, maxSaveAttempts)
}

// snapshot prices c and annotates lines that exceed live stock. A coupon that
// stopped being valid stays on the cart but contributes no discount.
func (s *Service) snapshot(ctx context.Context, c *domain.Cart) (*Snapshot, error) {
	snap := &Snapshot{
		ID:         c.ID,
		UserID:     c.UserID,
		Items:      make([]Line, 0, len(c.Items)),
		ItemCount:  c.ItemCount(),
		CouponCode: c.CouponCode,
		UpdatedAt:  c.UpdatedAt,
	}
	for _, it := range c.Items {
		snap.Items = append(snap.Items, Line{Item: it, LineTotal: it.LineTotal()})
	}

	if len(c.Items) > 0 {
		infos, err := s.variants.GetVariants(ctx, c.VariantIDs())
		if err != nil {
			return nil, err
		}
		for _, it := range c.Items {
			info, ok := infos[it.VariantID]
			switch {
			case !ok || !info.Available:
				snap.Warnings = append(snap.Warnings, StockWarning{
					ItemID: it.ID, VariantID: it.VariantID, SKU: it.SKU,
					Requested: it.Quantity, Unavailable: true,
				})
			case it.Quantity > info.Stock:
				snap.Warnings = append(snap.Warnings, StockWarning{
					ItemID: it.ID, VariantID: it.VariantID, SKU: it.SKU,
					Requested: it.Quantity, Available: info.Stock,
				})
			}
		}
	}

	subtotal := c.Subtotal()
	var discounter domain.Discounter
	if c.CouponCode != "" {
		v, err := s.coupons.Validate(ctx, c.CouponCode, subtotal)
		switch {
		case err == nil:
			discounter = validatedAmount(v.DiscountAmount)
		case discountdomain.IsRuleError(err):
			snap.CouponError = err.Error()
		default:
			return nil, err
		}
	}

	totals := domain.Price(subtotal, discounter, decimal.Zero)
	snap.Subtotal = totals.Subtotal
	snap.Discount = totals.Discount
	snap.Shipping = totals.Shipping
	snap.Total = totals.Total
	return snap, nil
}

// validatedAmount is a discount already computed for the cart's subtotal.
type validatedAmount decimal.Decimal

func (a validatedAmount) Amount(decimal.Decimal) decimal.Decimal {
	return decimal.Decimal(a)
}
