package cart

import (
	"time"

	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/cart"
)

// Line is a cart item with its computed total.
type Line struct {
	domain.Item
	LineTotal decimal.Decimal `json:"line_total"`
}

// StockWarning flags a line whose quantity exceeds the live stock, or whose
// variant can no longer be bought. Checkout rejects such carts.
type StockWarning struct {
	ItemID      string `json:"item_id"`
	VariantID   string `json:"variant_id"`
	SKU         string `json:"sku"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Unavailable bool   `json:"unavailable,omitempty"`
}

// Snapshot is the recomputed view of a cart returned by every operation.
type Snapshot struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	Items       []Line          `json:"items"`
	ItemCount   int             `json:"item_count"`
	CouponCode  string          `json:"coupon_code,omitempty"`
	CouponError string          `json:"coupon_error,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shipping"`
	Total       decimal.Decimal `json:"total"`
	Warnings    []StockWarning  `json:"warnings,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// GetCartRequest is the request for services.cart.get.
type GetCartRequest struct {
	ID string `json:"id"`
}

// GetCartResponse wraps a cart snapshot.
type GetCartResponse struct {
	Cart  *Snapshot `json:"cart,omitempty"`
	Error string    `json:"error,omitempty"`
}
