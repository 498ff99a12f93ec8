package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// OrderLine is the stock-relevant part of an order item.
type OrderLine struct {
	VariantID string `json:"variant_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderPlacedEvent is emitted after an order is committed.
type OrderPlacedEvent struct {
	OrderID       string      `json:"order_id"`
	OrderNumber   string      `json:"order_number"`
	Email         string      `json:"email"`
	Total         string      `json:"total"`
	CouponCode    string      `json:"coupon_code,omitempty"`
	PaymentStatus string      `json:"payment_status"`
	Lines         []OrderLine `json:"lines"`
	PlacedAt      time.Time   `json:"placed_at"`
}

// OrderPlacedV1 is the typed event definition for order placement.
// Subject: events.order.v1.order-placed
var OrderPlacedV1 = helper.EventDefinition[OrderPlacedEvent](
	"order", "OrderPlaced", "v1",
)

// OrderStatusChangedEvent is emitted after a status transition is applied.
type OrderStatusChangedEvent struct {
	OrderID        string      `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	Email          string      `json:"email"`
	From           string      `json:"from"`
	To             string      `json:"to"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Carrier        string      `json:"carrier,omitempty"`
	StockRestored  bool        `json:"stock_restored"`
	Lines          []OrderLine `json:"lines,omitempty"`
	ChangedAt      time.Time   `json:"changed_at"`
}

// OrderStatusChangedV1 is the typed event definition for status changes.
// Subject: events.order.v1.order-status-changed
var OrderStatusChangedV1 = helper.EventDefinition[OrderStatusChangedEvent](
	"order", "OrderStatusChanged", "v1",
)

// PaymentStatusChangedEvent is emitted when an order's payment settles or fails.
type PaymentStatusChangedEvent struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Email       string    `json:"email"`
	Status      string    `json:"status"`
	Reference   string    `json:"reference,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`
}

// PaymentStatusChangedV1 is the typed event definition for payment updates.
// Subject: events.order.v1.payment-status-changed
var PaymentStatusChangedV1 = helper.EventDefinition[PaymentStatusChangedEvent](
	"order", "PaymentStatusChanged", "v1",
)
