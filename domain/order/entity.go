package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfilment state of an order.
type Status string

// Order statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// PaymentStatus is the settlement state of an order's payment.
type PaymentStatus string

// Payment statuses.
const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Contact is the customer contact snapshot taken at checkout.
type Contact struct {
	Name  string `gorm:"size:120" json:"name"`
	Email string `gorm:"size:255;index" json:"email"`
	Phone string `gorm:"size:40" json:"phone"`
}

// Address is a postal address snapshot.
type Address struct {
	Line1      string `gorm:"size:255" json:"line1"`
	Line2      string `gorm:"size:255" json:"line2,omitempty"`
	City       string `gorm:"size:120" json:"city"`
	Region     string `gorm:"size:120" json:"region,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	Country    string `gorm:"size:2" json:"country"`
}

// IsZero reports whether no address fields are set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Order is a placed order. Line items are price-frozen copies of the cart and
// never change after creation.
type Order struct {
	ID               string          `gorm:"primarykey;size:36" json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	OrderNumber      string          `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	UserID           string          `gorm:"size:36;index" json:"user_id,omitempty"`
	Contact          Contact         `gorm:"embedded;embeddedPrefix:customer_" json:"contact"`
	ShippingAddress  Address         `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress   Address         `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Discount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Shipping         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"shipping"`
	Tax              decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Total            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CouponCode       string          `gorm:"size:50" json:"coupon_code,omitempty"`
	Status           Status          `gorm:"size:20;index;not null" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"size:20;index;not null" json:"payment_status"`
	PaymentProvider  string          `gorm:"size:40" json:"payment_provider"`
	PaymentReference string          `gorm:"size:120;index" json:"payment_reference,omitempty"`
	TrackingNumber   string          `gorm:"size:120" json:"tracking_number,omitempty"`
	Carrier          string          `gorm:"size:80" json:"carrier,omitempty"`
	Notes            string          `gorm:"size:2000" json:"notes,omitempty"`
	StockRestored    bool            `gorm:"not null" json:"-"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	ShippedAt        *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt      *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt       *time.Time      `json:"refunded_at,omitempty"`
	Items            []Item          `gorm:"foreignKey:OrderID" json:"items"`
	History          []StatusChange  `gorm:"foreignKey:OrderID" json:"history,omitempty"`
}

// TableName returns the table name for Order.
func (Order) TableName() string {
	return "orders"
}

// Item is a price-frozen order line.
type Item struct {
	ID           string          `gorm:"primarykey;size:36" json:"id"`
	OrderID      string          `gorm:"size:36;index;not null" json:"-"`
	VariantID    string          `gorm:"size:36;index;not null" json:"variant_id"`
	ProductID    string          `gorm:"size:36" json:"product_id"`
	ProductName  string          `gorm:"size:200" json:"product_name"`
	VariantLabel string          `gorm:"size:200" json:"variant_label,omitempty"`
	SKU          string          `gorm:"size:64" json:"sku"`
	Image        string          `gorm:"size:500" json:"image,omitempty"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"line_total"`
}

// TableName returns the table name for Item.
func (Item) TableName() string {
	return "order_items"
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	OrderID   string    `gorm:"size:36;index;not null" json:"-"`
	From      Status    `gorm:"size:20" json:"from"`
	To        Status    `gorm:"size:20;not null" json:"to"`
	Notes     string    `gorm:"size:2000" json:"notes,omitempty"`
	Actor     string    `gorm:"size:255" json:"actor,omitempty"`
}

// TableName returns the table name for StatusChange.
func (StatusChange) TableName() string {
	return "order_status_history"
}

// Sequence is a named counter used for human-readable order numbers.
type Sequence struct {
	Name  string `gorm:"primarykey;size:40"`
	Value int64  `gorm:"not null"`
}

// TableName returns the table name for Sequence.
func (Sequence) TableName() string {
	return "sequences"
}
