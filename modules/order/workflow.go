package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/events"
	"gorm.io/gorm"
)

// UpdateStatus applies an admin status change to the order with the given
// number. Refunds call the payment provider first and leave the status
// untouched if the provider fails. Cancellation, and refunds of goods that
// never shipped, return stock exactly once.
func (s *Service) UpdateStatus(ctx context.Context, number string, in StatusInput) (*domain.Order, error) {
	to := domain.Status(strings.ToLower(strings.TrimSpace(in.Status)))
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, in.Status)
	}
	o, err := s.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(o.Status, to) {
		return nil, &domain.TransitionError{From: o.Status, To: to}
	}

	if to == domain.StatusRefunded && o.Status != domain.StatusRefunded {
		if err := s.refund(ctx, o); err != nil {
			return nil, err
		}
	}

	update := domain.StatusUpdate{
		Notes:          strings.TrimSpace(in.Notes),
		TrackingNumber: strings.TrimSpace(in.TrackingNumber),
		Carrier:        strings.TrimSpace(in.Carrier),
		Actor:          in.Actor,
	}
	if to != domain.StatusShipped {
		update.TrackingNumber, update.Carrier = "", ""
	}
	return s.transition(ctx, o, to, update)
}

// transition writes the change, restores stock when the move calls for it,
// and publishes OrderStatusChanged. The status write and the stock return
// commit together, so a failed restore leaves the order in its prior status.
func (s *Service) transition(ctx context.Context, o *domain.Order, to domain.Status, u domain.StatusUpdate) (*domain.Order, error) {
	from := o.Status
	u.At = s.now()
	restored := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).ApplyStatus(ctx, o.ID, from, to, u); err != nil {
			return err
		}
		if !domain.RestoresStock(from, to) {
			return nil
		}
		var err error
		restored, err = s.restoreStock(ctx, tx, o)
		if err != nil {
			s.logger.Error("Failed to restore stock",
				"orderNumber", o.OrderNumber,
				"error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.orders.GetByID(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Order status changed",
		"orderNumber", o.OrderNumber,
		"from", from,
		"to", to,
		"stockRestored", restored)
	if from != to {
		s.publishStatusChanged(updated, from, restored)
	}
	return updated, nil
}

// restoreStock returns the order's units to inventory within tx. Only the
// first claim succeeds.
func (s *Service) restoreStock(ctx context.Context, tx *gorm.DB, o *domain.Order) (bool, error) {
	ok, err := s.orders.WithTx(tx).ClaimStockRestore(ctx, o.ID)
	if err != nil || !ok {
		return false, err
	}
	catalogRepo := s.catalog.WithTx(tx)
	for _, it := range o.Items {
		if err := catalogRepo.RestoreStock(ctx, it.VariantID, it.Quantity); err != nil {
			return false, err
		}
	}
	return true, nil
}

// refund reverses the payment of o with the provider. A payment already
// marked refunded is not sent to the provider again, so a status write that
// lost a race can be retried.
func (s *Service) refund(ctx context.Context, o *domain.Order) error {
	if o.PaymentStatus == domain.PaymentRefunded {
		return nil
	}
	if o.PaymentReference == "" || o.PaymentStatus != domain.PaymentPaid {
		return domain.ErrNotRefundable
	}
	if _, err := s.gateway.Refund(ctx, o.PaymentReference); err != nil {
		s.logger.Warn("Refund rejected by provider",
			"orderNumber", o.OrderNumber,
			"error", err)
		return err
	}
	changed, err := s.orders.SetPaymentStatus(ctx, o.ID, domain.PaymentRefunded, s.now())
	if err != nil {
		return err
	}
	if changed {
		o.PaymentStatus = domain.PaymentRefunded
		s.publishPaymentChanged(o)
	}
	return nil
}

// cancel moves an unpaid order to cancelled on behalf of the system.
func (s *Service) cancel(ctx context.Context, o *domain.Order, reason string) error {
	_, err := s.transition(ctx, o, domain.StatusCancelled, domain.StatusUpdate{Actor: "reconciler", Notes: reason})
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return nil
	}
	return err
}

func (s *Service) publishStatusChanged(o *domain.Order, from domain.Status, restored bool) {
	if s.eventBus == nil {
		return
	}
	evt := events.OrderStatusChangedEvent{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		Email:          o.Contact.Email,
		From:           string(from),
		To:             string(o.Status),
		TrackingNumber: o.TrackingNumber,
		Carrier:        o.Carrier,
		StockRestored:  restored,
		Lines:          lines(o),
		ChangedAt:      o.UpdatedAt,
	}
	if err := events.OrderStatusChangedV1.Publish(s.eventBus, evt, nil); err != nil {
		s.logger.Warn("Failed to publish OrderStatusChanged event", "orderNumber", o.OrderNumber, "error", err)
	}
}
