// Package cart holds the session-scoped cart and its pricing rules. Carts are
// plain values: callers load one from a store, mutate it, price it and save
// it back. Totals are always recomputed, never stored.
package cart

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wighaven/storefront/domain/money"
)

var (
	// ErrNotFound is returned when a cart session does not exist.
	ErrNotFound = errors.New("cart not found")

	// ErrItemNotFound is returned when a line item is not in the cart.
	ErrItemNotFound = errors.New("cart item not found")

	// ErrInvalidQuantity is returned for quantities below 1.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrEmpty is returned when checking out a cart without items.
	ErrEmpty = errors.New("cart is empty")
)

// Item is one cart line. Display fields are denormalised from the catalog at
// add time; checkout re-reads the authoritative price and stock.
type Item struct {
	ID           string          `json:"id"`
	VariantID    string          `json:"variant_id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	VariantLabel string          `json:"variant_label,omitempty"`
	SKU          string          `json:"sku"`
	Images       []string        `json:"images,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int             `json:"quantity"`
}

// LineTotal returns unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered list of items plus an optional applied coupon code.
type Cart struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	Items      []Item    `json:"items"`
	CouponCode string    `json:"coupon_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// New returns an empty cart.
func New(id string, now time.Time) *Cart {
	return &Cart{ID: id, Items: []Item{}, CreatedAt: now, UpdatedAt: now}
}

// Add appends item or, when a line for the same variant exists, merges the
// quantity into it and refreshes its display fields. Returns the line.
func (c *Cart) Add(item Item, now time.Time) (Item, error) {
	if item.Quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	c.UpdatedAt = now
	for i := range c.Items {
		if c.Items[i].VariantID == item.VariantID {
			merged := item
			merged.ID = c.Items[i].ID
			merged.Quantity = c.Items[i].Quantity + item.Quantity
			c.Items[i] = merged
			return merged, nil
		}
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	c.Items = append(c.Items, item)
	return item, nil
}

// UpdateQuantity sets a line's quantity. Quantities below 1 are rejected,
// not clamped; use Remove to drop a line.
func (c *Cart) UpdateQuantity(itemID string, quantity int, now time.Time) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	i := c.index(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	c.UpdatedAt = now
	return nil
}

// Remove deletes a line.
func (c *Cart) Remove(itemID string, now time.Time) error {
	i := c.index(itemID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.UpdatedAt = now
	return nil
}

// Item returns the line with the given ID.
func (c *Cart) Item(itemID string) (Item, bool) {
	if i := c.index(itemID); i >= 0 {
		return c.Items[i], true
	}
	return Item{}, false
}

// Clear empties the cart and drops the coupon.
func (c *Cart) Clear(now time.Time) {
	c.Items = []Item{}
	c.CouponCode = ""
	c.UpdatedAt = now
}

// Subtotal is the sum of unit price times quantity over all lines.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.LineTotal())
	}
	return money.Round(sum)
}

// ItemCount is the total number of units in the cart.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// VariantIDs returns the distinct variant IDs in line order.
func (c *Cart) VariantIDs() []string {
	ids := make([]string, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.VariantID)
	}
	return ids
}

func (c *Cart) index(itemID string) int {
	for i, it := range c.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// Discounter computes a reduction for a subtotal.
type Discounter interface {
	Amount(subtotal decimal.Decimal) decimal.Decimal
}

// Totals is the recomputed price summary of a cart.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Price computes totals for subtotal with an optional discount and shipping
// fee. Invariants: discount <= subtotal and total = subtotal - discount + shipping.
func Price(subtotal decimal.Decimal, d Discounter, shipping decimal.Decimal) Totals {
	discount := decimal.Zero
	if d != nil {
		discount = money.Clamp(d.Amount(subtotal), subtotal)
	}
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Total:    subtotal.Sub(discount).Add(shipping),
	}
}
