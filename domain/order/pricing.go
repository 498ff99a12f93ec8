package order

import (
	"github.com/shopspring/decimal"
	"github.com/wighaven/storefront/domain/money"
)

// Pricing holds the shipping and tax rules applied at checkout.
type Pricing struct {
	ShippingFlatFee decimal.Decimal
	// FreeShippingThreshold waives shipping when the discounted subtotal
	// reaches it. Zero disables free shipping.
	FreeShippingThreshold decimal.Decimal
	// TaxRate is a percentage applied to the discounted subtotal.
	TaxRate decimal.Decimal
}

// Totals is the money breakdown of an order.
type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Compute prices an order with the given subtotal and discount amount.
func (p Pricing) Compute(subtotal, discount decimal.Decimal) Totals {
	subtotal = money.Round(subtotal)
	discount = money.Clamp(money.Round(discount), subtotal)
	net := subtotal.Sub(discount)

	shipping := money.Round(p.ShippingFlatFee)
	if shipping.IsNegative() || subtotal.IsZero() {
		shipping = decimal.Zero
	}
	if p.FreeShippingThreshold.IsPositive() && net.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := decimal.Zero
	if p.TaxRate.IsPositive() {
		tax = money.Percent(net, p.TaxRate)
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    net.Add(shipping).Add(tax),
	}
}
