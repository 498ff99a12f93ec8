package discount

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/discount"
)

// ruleErrors maps reply reasons back to the sentinel errors.
var ruleErrors = []error{
	domain.ErrNotFound,
	domain.ErrExpired,
	domain.ErrNotYetActive,
	domain.ErrUsageExceeded,
	domain.ErrInactive,
	domain.ErrMinimumNotMet,
}

// ValidatorAdapter validates coupons through services.discount.validate.
type ValidatorAdapter struct {
	container mono.ServiceContainer
}

// NewValidatorAdapter creates a new ValidatorAdapter.
func NewValidatorAdapter(container mono.ServiceContainer) *ValidatorAdapter {
	return &ValidatorAdapter{container: container}
}

// Validate checks code against subtotal. Rule failures come back as the
// discount sentinel errors so callers can use errors.Is.
func (a *ValidatorAdapter) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Validation, error) {
	req := ValidateRequest{Code: code, Subtotal: subtotal}
	var resp ValidateResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"validate",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("validate request failed: %w", err)
	}
	if !resp.Valid {
		return nil, reasonError(resp.Reason)
	}
	return &Validation{Valid: true, Code: resp.Code, DiscountAmount: resp.DiscountAmount}, nil
}

func reasonError(reason string) error {
	for _, target := range ruleErrors {
		msg := target.Error()
		if reason == msg {
			return target
		}
		if strings.HasPrefix(reason, msg+":") {
			return fmt.Errorf("%w%s", target, strings.TrimPrefix(reason, msg))
		}
	}
	return fmt.Errorf("coupon rejected: %s", reason)
}
