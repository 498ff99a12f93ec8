// Package order places orders from carts and runs the order status workflow.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	cartdomain "github.com/wighaven/storefront/domain/cart"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	discountdomain "github.com/wighaven/storefront/domain/discount"
	"github.com/wighaven/storefront/domain/money"
	domain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/events"
	"github.com/wighaven/storefront/modules/payment"
	"gorm.io/gorm"
)

// CartPort reads and clears the cart being checked out.
type CartPort interface {
	Load(ctx context.Context, id string) (*cartdomain.Cart, error)
	Clear(ctx context.Context, id string) error
}

// Config holds checkout and reconciliation settings.
type Config struct {
	Prefix            string
	Pricing           domain.Pricing
	AutoProcessPaid   bool
	ReconcileInterval time.Duration
	PaymentExpiry     time.Duration
}

// DefaultConfig returns the default order configuration.
func DefaultConfig() Config {
	return Config{
		Prefix:            "WH",
		AutoProcessPaid:   true,
		ReconcileInterval: time.Minute,
		PaymentExpiry:     24 * time.Hour,
	}
}

// Service places orders and applies status changes.
type Service struct {
	db       *gorm.DB
	orders   *domain.Repository
	catalog  *catalogdomain.Repository
	carts    CartPort
	gateway  payment.Gateway
	eventBus mono.EventBus
	config   Config
	logger   types.Logger
	now      func() time.Time
}

// NewService creates a new order service.
func NewService(db *gorm.DB, carts CartPort, gateway payment.Gateway, cfg Config, logger types.Logger) *Service {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	return &Service{
		db:      db,
		orders:  domain.NewRepository(db),
		catalog: catalogdomain.NewRepository(db),
		carts:   carts,
		gateway: gateway,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// SetEventBus enables event publishing.
func (s *Service) SetEventBus(bus mono.EventBus) {
	s.eventBus = bus
}

// Checkout turns a cart into a pending order. Stock is re-read and
// decremented inside one transaction, so the order is placed completely or
// not at all. Payment is initiated after commit; its failure leaves the order
// pending for the reconciler.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	c, err := s.carts.Load(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, &domain.ValidationError{Field: "cart_id", Message: cartdomain.ErrEmpty.Error()}
	}
	if req.UserID == "" {
		req.UserID = c.UserID
	}

	var o *domain.Order
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		o, err = s.place(ctx, tx, c, req)
		return err
	})
	if err != nil {
		s.logger.Warn("Checkout rejected", "cartId", c.ID, "error", err)
		return nil, err
	}
	s.logger.Info("Order created",
		"orderNumber", o.OrderNumber,
		"total", o.Total.StringFixed(2),
		"items", len(o.Items))

	if err := s.carts.Clear(ctx, c.ID); err != nil {
		s.logger.Warn("Failed to clear cart after checkout", "cartId", c.ID, "error", err)
	}
	s.publishPlaced(o)

	result := &CheckoutResult{Order: o}
	res, err := s.initiatePayment(ctx, o)
	if err != nil {
		s.logger.Warn("Payment initiation failed, order left pending",
			"orderNumber", o.OrderNumber,
			"error", err)
		result.PaymentError = err.Error()
		return result, nil
	}
	result.Payment = res
	return result, nil
}

// place runs inside the checkout transaction.
func (s *Service) place(ctx context.Context, tx *gorm.DB, c *cartdomain.Cart, req CheckoutRequest) (*domain.Order, error) {
	catalogRepo := s.catalog.WithTx(tx)
	orderRepo := s.orders.WithTx(tx)
	discountRepo := discountdomain.NewRepository(tx)
	now := s.now()

	variants, err := catalogRepo.GetVariants(ctx, c.VariantIDs())
	if err != nil {
		return nil, err
	}
	productIDs := make([]string, 0, len(variants))
	for _, v := range variants {
		productIDs = append(productIDs, v.ProductID)
	}
	products, err := catalogRepo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	var shortages []domain.Shortage
	items := make([]domain.Item, 0, len(c.Items))
	subtotal := decimal.Zero
	for _, it := range c.Items {
		v, ok := variants[it.VariantID]
		p, live := products[v.ProductID]
		if !ok || !live || !v.IsActive || !p.IsActive {
			shortages = append(shortages, shortage(it, 0))
			continue
		}
		if it.Quantity > v.Stock {
			shortages = append(shortages, shortage(it, v.Stock))
			continue
		}
		line := money.Round(v.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		items = append(items, domain.Item{
			ID:           uuid.NewString(),
			VariantID:    v.ID,
			ProductID:    p.ID,
			ProductName:  p.Name,
			VariantLabel: v.Label(),
			SKU:          v.SKU,
			Image:        firstImage(v.Images, p.Images),
			UnitPrice:    money.Round(v.Price),
			Quantity:     it.Quantity,
			LineTotal:    line,
		})
		subtotal = subtotal.Add(line)
	}
	if len(shortages) > 0 {
		return nil, &domain.InsufficientStockError{Lines: shortages}
	}

	var coupon *discountdomain.Discount
	discountAmount := decimal.Zero
	if c.CouponCode != "" {
		coupon, err = discountRepo.GetByCode(ctx, c.CouponCode)
		if err == nil {
			err = coupon.Check(now, subtotal)
		}
		if err != nil {
			if discountdomain.IsRuleError(err) {
				return nil, &domain.CouponNoLongerValidError{Code: c.CouponCode, Reason: err}
			}
			return nil, err
		}
		discountAmount = coupon.Amount(subtotal)
	}
	totals := s.config.Pricing.Compute(subtotal, discountAmount)

	for _, it := range items {
		ok, err := catalogRepo.DecrementStock(ctx, it.VariantID, it.Quantity)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		available := 0
		if v, err := catalogRepo.GetVariant(ctx, it.VariantID); err == nil {
			available = v.Stock
		}
		shortages = append(shortages, domain.Shortage{
			VariantID:   it.VariantID,
			SKU:         it.SKU,
			ProductName: it.ProductName,
			Requested:   it.Quantity,
			Available:   available,
		})
	}
	if len(shortages) > 0 {
		return nil, &domain.InsufficientStockError{Lines: shortages}
	}

	number, err := orderRepo.NextNumber(ctx, s.config.Prefix)
	if err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:              uuid.NewString(),
		CreatedAt:       now,
		UpdatedAt:       now,
		OrderNumber:     number,
		UserID:          req.UserID,
		Contact:         req.Contact,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		Shipping:        totals.Shipping,
		Tax:             totals.Tax,
		Total:           totals.Total,
		Status:          domain.StatusPending,
		PaymentStatus:   domain.PaymentPending,
		PaymentProvider: req.Provider,
		Notes:           req.Notes,
		Items:           items,
		History:         []domain.StatusChange{{CreatedAt: now, To: domain.StatusPending, Actor: "checkout"}},
	}
	if coupon != nil {
		o.CouponCode = coupon.Code
	}
	if err := orderRepo.Create(ctx, o); err != nil {
		return nil, err
	}

	if coupon != nil {
		if _, err := discountRepo.Redeem(ctx, coupon, number, totals.Discount); err != nil {
			if errors.Is(err, discountdomain.ErrUsageExceeded) {
				return nil, &domain.CouponNoLongerValidError{Code: coupon.Code, Reason: err}
			}
			return nil, err
		}
	}
	return o, nil
}

func shortage(it cartdomain.Item, available int) domain.Shortage {
	return domain.Shortage{
		VariantID:   it.VariantID,
		SKU:         it.SKU,
		ProductName: it.ProductName,
		Requested:   it.Quantity,
		Available:   available,
	}
}

func firstImage(lists ...[]string) string {
	for _, l := range lists {
		if len(l) > 0 {
			return l[0]
		}
	}
	return ""
}

func (s *Service) initiatePayment(ctx context.Context, o *domain.Order) (*payment.Result, error) {
	res, err := s.gateway.InitiatePayment(ctx, payment.Initiation{
		OrderNumber:   o.OrderNumber,
		Amount:        o.Total,
		Provider:      o.PaymentProvider,
		CustomerPhone: o.Contact.Phone,
		CustomerEmail: o.Contact.Email,
	})
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetPaymentReference(ctx, o.ID, o.PaymentProvider, res.Reference); err != nil {
		return nil, fmt.Errorf("failed to store payment reference: %w", err)
	}
	o.PaymentReference = res.Reference
	return res, nil
}

// Get returns an order by order number.
func (s *Service) Get(ctx context.Context, number string) (*domain.Order, error) {
	return s.orders.GetByNumber(ctx, strings.ToUpper(strings.TrimSpace(number)))
}

// Track returns an order for a customer who knows its number and email.
// A mismatched email reports ErrNotFound so numbers cannot be probed.
func (s *Service) Track(ctx context.Context, number, email string) (*domain.Order, error) {
	o, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(o.Contact.Email, strings.TrimSpace(email)) {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

// List returns orders matching f and the total match count.
func (s *Service) List(ctx context.Context, f domain.Filter) ([]domain.Order, int64, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, domain.ErrInvalidStatus
	}
	return s.orders.List(ctx, f)
}

func lines(o *domain.Order) []events.OrderLine {
	out := make([]events.OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, events.OrderLine{VariantID: it.VariantID, ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func (s *Service) publishPlaced(o *domain.Order) {
	if s.eventBus == nil {
		return
	}
	evt := events.OrderPlacedEvent{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Email:         o.Contact.Email,
		Total:         o.Total.StringFixed(2),
		CouponCode:    o.CouponCode,
		PaymentStatus: string(o.PaymentStatus),
		Lines:         lines(o),
		PlacedAt:      o.CreatedAt,
	}
	if err := events.OrderPlacedV1.Publish(s.eventBus, evt, nil); err != nil {
		s.logger.Warn("Failed to publish OrderPlaced event", "orderNumber", o.OrderNumber, "error", err)
	}
}
