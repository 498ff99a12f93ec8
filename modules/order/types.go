package order

import (
	"net/mail"
	"strings"

	domain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/modules/payment"
)

// CheckoutRequest is the input to Checkout.
type CheckoutRequest struct {
	CartID          string         `json:"cart_id"`
	UserID          string         `json:"-"`
	Contact         domain.Contact `json:"contact"`
	ShippingAddress domain.Address `json:"shipping_address"`
	BillingAddress  domain.Address `json:"billing_address"`
	Provider        string         `json:"provider"`
	Notes           string         `json:"notes,omitempty"`
}

func (r *CheckoutRequest) normalize() {
	r.CartID = strings.TrimSpace(r.CartID)
	r.Provider = strings.ToLower(strings.TrimSpace(r.Provider))
	r.Contact.Name = strings.TrimSpace(r.Contact.Name)
	r.Contact.Email = strings.ToLower(strings.TrimSpace(r.Contact.Email))
	r.Contact.Phone = strings.TrimSpace(r.Contact.Phone)
	r.ShippingAddress.Country = strings.ToUpper(strings.TrimSpace(r.ShippingAddress.Country))
	if r.BillingAddress.IsZero() {
		r.BillingAddress = r.ShippingAddress
	}
}

func (r *CheckoutRequest) validate() error {
	switch {
	case r.CartID == "":
		return &domain.ValidationError{Field: "cart_id", Message: "is required"}
	case r.Contact.Name == "":
		return &domain.ValidationError{Field: "contact.name", Message: "is required"}
	case r.Contact.Phone == "":
		return &domain.ValidationError{Field: "contact.phone", Message: "is required"}
	case r.Provider == "":
		return &domain.ValidationError{Field: "provider", Message: "is required"}
	case r.ShippingAddress.Line1 == "":
		return &domain.ValidationError{Field: "shipping_address.line1", Message: "is required"}
	case r.ShippingAddress.City == "":
		return &domain.ValidationError{Field: "shipping_address.city", Message: "is required"}
	case len(r.ShippingAddress.Country) != 2:
		return &domain.ValidationError{Field: "shipping_address.country", Message: "must be a two-letter country code"}
	}
	if _, err := mail.ParseAddress(r.Contact.Email); err != nil {
		return &domain.ValidationError{Field: "contact.email", Message: "is not a valid email address"}
	}
	return nil
}

// CheckoutResult is the placed order plus the outcome of payment initiation.
// A payment failure does not undo the order; PaymentError explains it.
type CheckoutResult struct {
	Order        *domain.Order   `json:"order"`
	Payment      *payment.Result `json:"payment,omitempty"`
	PaymentError string          `json:"payment_error,omitempty"`
}

// StatusInput is an admin status change.
type StatusInput struct {
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Actor          string `json:"-"`
}

// PaymentNotification is a provider webhook payload. The status it claims is
// re-verified with the gateway before anything changes.
type PaymentNotification struct {
	Reference   string `json:"reference"`
	OrderNumber string `json:"order_number,omitempty"`
	Status      string `json:"status,omitempty"`
}

// ReconcileReport summarises one reconciler pass.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Paid      int `json:"paid"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Errors    int `json:"errors"`
}

// GetOrderRequest is the request for services.order.get.
type GetOrderRequest struct {
	OrderNumber string `json:"order_number"`
}

// OrderResponse wraps an order or an error message.
type OrderResponse struct {
	Order *domain.Order `json:"order,omitempty"`
	Error string        `json:"error,omitempty"`
}

// UpdateStatusRequest is the request for services.order.update-status.
type UpdateStatusRequest struct {
	OrderNumber    string `json:"order_number"`
	Status         string `json:"status"`
	Notes          string `json:"notes,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Actor          string `json:"actor,omitempty"`
}
