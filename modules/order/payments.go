package order

import (
	"context"
	"errors"
	"strings"

	domain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/events"
	"github.com/wighaven/storefront/modules/payment"
)

const reconcileBatch = 100

// paymentStatuses maps provider statuses onto order payment statuses.
var paymentStatuses = map[payment.Status]domain.PaymentStatus{
	payment.StatusPending:  domain.PaymentPending,
	payment.StatusPaid:     domain.PaymentPaid,
	payment.StatusFailed:   domain.PaymentFailed,
	payment.StatusRefunded: domain.PaymentRefunded,
}

// HandlePaymentNotification processes a provider webhook. The claimed status
// is ignored; the gateway is asked for the authoritative one.
func (s *Service) HandlePaymentNotification(ctx context.Context, n PaymentNotification) (*domain.Order, error) {
	var (
		o   *domain.Order
		err error
	)
	switch {
	case n.Reference != "":
		o, err = s.orders.GetByReference(ctx, strings.TrimSpace(n.Reference))
	case n.OrderNumber != "":
		o, err = s.Get(ctx, n.OrderNumber)
	default:
		return nil, &domain.ValidationError{Field: "reference", Message: "is required"}
	}
	if err != nil {
		return nil, err
	}
	if o.PaymentReference == "" {
		return nil, &domain.ValidationError{Field: "reference", Message: "order has no payment in progress"}
	}

	st, err := s.gateway.VerifyPayment(ctx, o.PaymentReference)
	if err != nil {
		return nil, err
	}
	if err := s.applyPayment(ctx, o, st); err != nil {
		return nil, err
	}
	return s.orders.GetByID(ctx, o.ID)
}

// applyPayment records a verified provider status on o.
func (s *Service) applyPayment(ctx context.Context, o *domain.Order, st payment.Status) error {
	ps, ok := paymentStatuses[st]
	if !ok {
		return &payment.ProviderError{Op: "verify", Message: "unknown status " + string(st)}
	}
	changed, err := s.orders.SetPaymentStatus(ctx, o.ID, ps, s.now())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	o.PaymentStatus = ps
	s.logger.Info("Payment status changed", "orderNumber", o.OrderNumber, "status", ps)
	s.publishPaymentChanged(o)

	if ps == domain.PaymentPaid && s.config.AutoProcessPaid && o.Status == domain.StatusPending {
		_, err := s.transition(ctx, o, domain.StatusProcessing, domain.StatusUpdate{
			Actor: "payment",
			Notes: "payment confirmed",
		})
		if err != nil && !errors.Is(err, domain.ErrConcurrentUpdate) {
			return err
		}
	}
	return nil
}

// Reconcile settles pending orders whose payment outcome never arrived. It
// re-initiates payments that never started, verifies the rest, and cancels
// orders whose payment failed or expired. It returns the last error seen so
// a retrying caller runs the pass again.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()
	orders, err := s.orders.AwaitingPayment(ctx, now.Add(-s.config.ReconcileInterval), reconcileBatch)
	if err != nil {
		return report, err
	}

	var lastErr error
	for i := range orders {
		o := &orders[i]
		report.Checked++
		expired := s.config.PaymentExpiry > 0 && o.CreatedAt.Before(now.Add(-s.config.PaymentExpiry))

		st, err := s.currentPayment(ctx, o)
		if err == nil {
			err = s.applyPayment(ctx, o, st)
		}
		if err != nil {
			report.Errors++
			lastErr = err
			s.logger.Warn("Reconcile failed for order", "orderNumber", o.OrderNumber, "error", err)
			if !expired {
				continue
			}
		}

		switch {
		case o.PaymentStatus == domain.PaymentPaid:
			report.Paid++
		case o.PaymentStatus == domain.PaymentFailed:
			report.Failed++
			if err := s.cancel(ctx, o, "payment failed"); err != nil {
				lastErr = err
				continue
			}
			report.Cancelled++
		case expired:
			if err := s.cancel(ctx, o, "payment expired"); err != nil {
				lastErr = err
				continue
			}
			report.Cancelled++
		}
	}

	if report.Checked > 0 {
		s.logger.Info("Payment reconciliation finished",
			"checked", report.Checked,
			"paid", report.Paid,
			"failed", report.Failed,
			"cancelled", report.Cancelled,
			"errors", report.Errors)
	}
	return report, lastErr
}

// currentPayment asks the provider for the payment status of o, starting the
// payment first if checkout never managed to.
func (s *Service) currentPayment(ctx context.Context, o *domain.Order) (payment.Status, error) {
	if o.PaymentReference == "" {
		res, err := s.initiatePayment(ctx, o)
		if err != nil {
			return "", err
		}
		return res.Status, nil
	}
	return s.gateway.VerifyPayment(ctx, o.PaymentReference)
}

func (s *Service) publishPaymentChanged(o *domain.Order) {
	if s.eventBus == nil {
		return
	}
	evt := events.PaymentStatusChangedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Email:       o.Contact.Email,
		Status:      string(o.PaymentStatus),
		Reference:   o.PaymentReference,
		ChangedAt:   s.now(),
	}
	if err := events.PaymentStatusChangedV1.Publish(s.eventBus, evt, nil); err != nil {
		s.logger.Warn("Failed to publish PaymentStatusChanged event", "orderNumber", o.OrderNumber, "error", err)
	}
}
