package cart

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type percentOff int64

func (p percentOff) Amount(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(decimal.NewFromInt(int64(p))).Div(decimal.NewFromInt(100)).Round(2)
}

type fixedOff string

func (f fixedOff) Amount(decimal.Decimal) decimal.Decimal {
	return decimal.RequireFromString(string(f))
}

var now = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func item(variant, price string, qty int) Item {
	return Item{VariantID: variant, ProductName: "Wig " + variant, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestCart_AddMergesSameVariant(t *testing.T) {
	c := New("c1", now)

	first, err := c.Add(item("A", "100", 1), now)
	require.NoError(t, err)
	second, err := c.Add(item("A", "100", 2), now)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, c.Items[0].Quantity)
}

func TestCart_AddRejectsZeroQuantity(t *testing.T) {
	c := New("c1", now)
	_, err := c.Add(item("A", "100", 0), now)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, c.Items)
}

func TestCart_UpdateQuantity(t *testing.T) {
	c := New("c1", now)
	line, err := c.Add(item("A", "100", 1), now)
	require.NoError(t, err)

	tests := []struct {
		name    string
		itemID  string
		qty     int
		wantErr error
		wantQty int
	}{
		{"increase", line.ID, 4, nil, 4},
		{"zero rejected", line.ID, 0, ErrInvalidQuantity, 4},
		{"negative rejected", line.ID, -2, ErrInvalidQuantity, 4},
		{"unknown item", "missing", 2, ErrItemNotFound, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.UpdateQuantity(tt.itemID, tt.qty, now)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantQty, c.Items[0].Quantity)
		})
	}
}

func TestCart_Remove(t *testing.T) {
	c := New("c1", now)
	a, _ := c.Add(item("A", "100", 1), now)
	b, _ := c.Add(item("B", "50", 1), now)

	require.NoError(t, c.Remove(a.ID, now))
	require.Len(t, c.Items, 1)
	assert.Equal(t, b.ID, c.Items[0].ID)
	assert.ErrorIs(t, c.Remove(a.ID, now), ErrItemNotFound)
}

func TestPrice_Save10Example(t *testing.T) {
	c := New("c1", now)
	_, _ = c.Add(item("A", "100", 2), now)
	_, _ = c.Add(item("B", "50", 1), now)

	totals := Price(c.Subtotal(), percentOff(10), decimal.Zero)

	assert.True(t, totals.Subtotal.Equal(decimal.NewFromInt(250)), "subtotal %s", totals.Subtotal)
	assert.True(t, totals.Discount.Equal(decimal.NewFromInt(25)), "discount %s", totals.Discount)
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(225)), "total %s", totals.Total)
	assert.Equal(t, 3, c.ItemCount())
}

func TestPrice_Invariants(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		d        Discounter
		shipping string
	}{
		{"no coupon", "120.50", nil, "0"},
		{"percentage", "99.99", percentOff(15), "10"},
		{"fixed larger than subtotal", "20", fixedOff("35"), "5"},
		{"full percentage", "80", percentOff(100), "0"},
		{"empty cart", "0", percentOff(10), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := decimal.RequireFromString(tt.subtotal)
			ship := decimal.RequireFromString(tt.shipping)
			totals := Price(sub, tt.d, ship)

			assert.True(t, totals.Discount.LessThanOrEqual(totals.Subtotal))
			assert.False(t, totals.Discount.IsNegative())
			assert.True(t, totals.Total.Equal(totals.Subtotal.Sub(totals.Discount).Add(totals.Shipping)))
		})
	}
}

func TestCart_Clear(t *testing.T) {
	c := New("c1", now)
	_, _ = c.Add(item("A", "100", 1), now)
	c.CouponCode = "SAVE10"

	c.Clear(now)
	assert.Empty(t, c.Items)
	assert.Empty(t, c.CouponCode)
	assert.True(t, c.Subtotal().IsZero())
}
