package discount

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wighaven/storefront/domain/money"
)

// Check reports why d cannot be applied at now to a cart with the given
// subtotal, or nil when it is applicable. Checks run in a fixed order so a
// coupon that is both expired and exhausted reports ErrExpired.
func (d *Discount) Check(now time.Time, subtotal decimal.Decimal) error {
	switch {
	case !d.IsActive:
		return ErrInactive
	case !now.Before(d.ExpiresAt):
		return ErrExpired
	case now.Before(d.StartsAt):
		return ErrNotYetActive
	case d.Exhausted():
		return ErrUsageExceeded
	case subtotal.LessThan(d.MinSubtotal):
		return ErrMinimumNotMet
	}
	return nil
}

// Exhausted reports whether the usage cap has been reached.
func (d *Discount) Exhausted() bool {
	return d.MaxUses != nil && d.UsedCount >= *d.MaxUses
}

// Amount computes the reduction for subtotal. The result never exceeds
// subtotal and is never negative.
func (d *Discount) Amount(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch d.Type {
	case TypePercentage:
		amount = money.Percent(subtotal, d.Value)
	case TypeFixed:
		amount = money.Round(d.Value)
	}
	return money.Clamp(amount, subtotal)
}
