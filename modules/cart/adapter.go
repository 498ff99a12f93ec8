package cart

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	domain "github.com/wighaven/storefront/domain/cart"
)

// CheckoutAdapter gives the order module read and clear access to carts
// through services.cart.get and services.cart.clear.
type CheckoutAdapter struct {
	container mono.ServiceContainer
}

// NewCheckoutAdapter creates a new CheckoutAdapter.
func NewCheckoutAdapter(container mono.ServiceContainer) *CheckoutAdapter {
	return &CheckoutAdapter{container: container}
}

// Load returns the cart's lines and coupon code.
func (a *CheckoutAdapter) Load(ctx context.Context, id string) (*domain.Cart, error) {
	snap, err := a.call(ctx, "get", id)
	if err != nil {
		return nil, err
	}
	c := &domain.Cart{
		ID:         snap.ID,
		UserID:     snap.UserID,
		Items:      make([]domain.Item, 0, len(snap.Items)),
		CouponCode: snap.CouponCode,
		UpdatedAt:  snap.UpdatedAt,
	}
	for _, l := range snap.Items {
		c.Items = append(c.Items, l.Item)
	}
	return c, nil
}

// Clear empties the cart.
func (a *CheckoutAdapter) Clear(ctx context.Context, id string) error {
	_, err := a.call(ctx, "clear", id)
	return err
}

func (a *CheckoutAdapter) call(ctx context.Context, service, id string) (*Snapshot, error) {
	req := GetCartRequest{ID: id}
	var resp GetCartResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, service, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("cart %s request failed: %w", service, err)
	}
	if resp.Error != "" {
		if resp.Error == domain.ErrNotFound.Error() {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("cart %s failed: %s", service, resp.Error)
	}
	return resp.Cart, nil
}
