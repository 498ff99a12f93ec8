// Package payment wraps the external payment provider behind a Gateway port.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Status is the provider-side state of a payment.
type Status string

// Provider payment statuses.
const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

var (
	// ErrUnknownReference is returned for references the provider never issued.
	ErrUnknownReference = errors.New("unknown payment reference")

	// ErrInvalidRequest is returned for malformed initiation requests.
	ErrInvalidRequest = errors.New("invalid payment request")
)

// ProviderError is an opaque upstream failure. It is surfaced to callers but
// not interpreted.
type ProviderError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment provider %s failed (%d): %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment provider %s failed: %s", e.Op, e.Message)
}

// Initiation describes a payment request for one order.
type Initiation struct {
	OrderNumber   string          `json:"order_number"`
	Amount        decimal.Decimal `json:"amount"`
	Provider      string          `json:"provider"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	CustomerEmail string          `json:"customer_email,omitempty"`
}

func (i Initiation) validate() error {
	if i.OrderNumber == "" {
		return fmt.Errorf("%w: order number is required", ErrInvalidRequest)
	}
	if !i.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}

// Result is the provider's answer to an initiation.
type Result struct {
	Reference   string `json:"reference"`
	Status      Status `json:"status"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// Gateway is the payment provider port.
type Gateway interface {
	// InitiatePayment starts a payment keyed by order number. Repeating the
	// call for the same order returns the original reference.
	InitiatePayment(ctx context.Context, in Initiation) (*Result, error)
	// VerifyPayment returns the current status of a payment.
	VerifyPayment(ctx context.Context, reference string) (Status, error)
	// Refund reverses a settled payment.
	Refund(ctx context.Context, reference string) (Status, error)
	// Name identifies the gateway in logs and health output.
	Name() string
}
