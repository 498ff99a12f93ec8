package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when an order does not exist.
	ErrNotFound = errors.New("order not found")

	// ErrInsufficientStock matches any *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidTransition matches any *TransitionError.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned for unknown status values.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrCouponNoLongerValid matches any *CouponNoLongerValidError.
	ErrCouponNoLongerValid = errors.New("coupon is no longer valid")

	// ErrNotRefundable is returned when an order has no settled payment to refund.
	ErrNotRefundable = errors.New("order has no paid payment to refund")

	// ErrConcurrentUpdate is returned when the order changed status between
	// read and write.
	ErrConcurrentUpdate = errors.New("order was modified concurrently")
)

// Shortage describes one cart line that exceeds the available stock.
type Shortage struct {
	VariantID   string `json:"variant_id"`
	SKU         string `json:"sku,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
}

// InsufficientStockError lists every line that cannot be fulfilled.
type InsufficientStockError struct {
	Lines []Shortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		name := l.SKU
		if name == "" {
			name = l.VariantID
		}
		parts = append(parts, fmt.Sprintf("%s: requested %d, available %d", name, l.Requested, l.Available))
	}
	return "insufficient stock (" + strings.Join(parts, "; ") + ")"
}

// Is reports ErrInsufficientStock as a match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// TransitionError is returned when a status change is not allowed.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// Is reports ErrInvalidTransition as a match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// CouponNoLongerValidError wraps the rule a coupon failed at checkout.
type CouponNoLongerValidError struct {
	Code   string
	Reason error
}

func (e *CouponNoLongerValidError) Error() string {
	return fmt.Sprintf("coupon %s is no longer valid: %v", e.Code, e.Reason)
}

// Is reports ErrCouponNoLongerValid as a match.
func (e *CouponNoLongerValidError) Is(target error) bool {
	return target == ErrCouponNoLongerValid
}

func (e *CouponNoLongerValidError) Unwrap() error {
	return e.Reason
}

// ValidationError reports a malformed checkout or status request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
