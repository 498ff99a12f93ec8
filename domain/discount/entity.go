package discount

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type is the kind of reduction a discount applies.
type Type string

// Discount types.
const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Valid reports whether t is a known discount type.
func (t Type) Valid() bool {
	return t == TypePercentage || t == TypeFixed
}

// Discount is a coupon code redeemable for a price reduction.
type Discount struct {
	ID          string          `gorm:"primarykey;size:36" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Code        string          `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Description string          `gorm:"size:255" json:"description,omitempty"`
	Type        Type            `gorm:"size:20;not null" json:"type"`
	Value       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"value"`
	MinSubtotal decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"min_subtotal"`
	StartsAt    time.Time       `gorm:"not null" json:"starts_at"`
	ExpiresAt   time.Time       `gorm:"not null" json:"expires_at"`
	MaxUses     *int            `json:"max_uses"`
	UsedCount   int             `gorm:"not null;default:0" json:"used_count"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
}

// TableName returns the table name for Discount.
func (Discount) TableName() string {
	return "discounts"
}

// Redemption records one use of a discount by an order. The unique key on
// (discount_id, order_number) makes usage counting idempotent per order.
type Redemption struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	DiscountID  string          `gorm:"size:36;not null;uniqueIndex:idx_redemption_order" json:"discount_id"`
	OrderNumber string          `gorm:"size:32;not null;uniqueIndex:idx_redemption_order" json:"order_number"`
	Code        string          `gorm:"size:50;not null" json:"code"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
}

// TableName returns the table name for Redemption.
func (Redemption) TableName() string {
	return "discount_redemptions"
}

// NormalizeCode returns the canonical stored form of a coupon code.
// Lookups are case-insensitive because codes are stored upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
