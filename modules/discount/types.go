package discount

import (
	"time"

	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/discount"
)

// Input creates or updates a discount. Nil fields are left unchanged on update.
type Input struct {
	Code        *string          `json:"code,omitempty"`
	Description *string          `json:"description,omitempty"`
	Type        *domain.Type     `json:"type,omitempty"`
	Value       *decimal.Decimal `json:"value,omitempty"`
	MinSubtotal *decimal.Decimal `json:"min_subtotal,omitempty"`
	StartsAt    *time.Time       `json:"starts_at,omitempty"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	MaxUses     *int             `json:"max_uses,omitempty"`
	// ClearMaxUses removes the usage cap on update.
	ClearMaxUses bool  `json:"clear_max_uses,omitempty"`
	IsActive     *bool `json:"is_active,omitempty"`
}

// Validation is the outcome of checking a code against a cart subtotal.
type Validation struct {
	Valid          bool             `json:"valid"`
	Code           string           `json:"code"`
	Type           domain.Type      `json:"type"`
	Value          decimal.Decimal  `json:"value"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
	Discount       *domain.Discount `json:"-"`
}

// ValidateRequest is the request for services.discount.validate.
type ValidateRequest struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// ValidateResponse reports a validation. Reason carries the rule that failed.
type ValidateResponse struct {
	Valid          bool            `json:"valid"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Reason         string          `json:"reason,omitempty"`
}
