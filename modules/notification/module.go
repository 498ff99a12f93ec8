// Package notification turns order, payment and backup events into customer
// and operator notifications.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/wighaven/storefront/events"
)

// Channels.
const (
	ChannelEmail = "email"
	ChannelOps   = "ops"
)

// RecentRequest is the request for services.notification.recent.
type RecentRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RecentResponse lists notifications newest first.
type RecentResponse struct {
	Notifications []Notification `json:"notifications"`
	Total         uint64         `json:"total"`
}

// Module consumes domain events and records notifications.
type Module struct {
	outbox *Outbox
	logger types.Logger
	now    func() time.Time
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a notification module keeping up to capacity entries.
func NewModule(capacity int, logger types.Logger) *Module {
	return &Module{outbox: NewOutbox(capacity), logger: logger, now: time.Now}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "notification"
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Notification module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Notification module stopped", "sent", m.outbox.Total())
	return nil
}

// Outbox returns the notification outbox.
func (m *Module) Outbox() *Outbox {
	return m.outbox
}

// Health reports how many notifications were recorded.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"sent": m.outbox.Total()},
	}
}

// RegisterEventConsumers subscribes to order, payment and backup events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.OrderPlacedV1, m.handleOrderPlaced, m); err != nil {
		return fmt.Errorf("failed to register OrderPlaced consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.OrderStatusChangedV1, m.handleOrderStatusChanged, m); err != nil {
		return fmt.Errorf("failed to register OrderStatusChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.PaymentStatusChangedV1, m.handlePaymentStatusChanged, m); err != nil {
		return fmt.Errorf("failed to register PaymentStatusChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.BackupCompletedV1, m.handleBackupCompleted, m); err != nil {
		return fmt.Errorf("failed to register BackupCompleted consumer: %w", err)
	}
	m.logger.Info("Registered event consumers",
		"events", []string{"OrderPlaced.v1", "OrderStatusChanged.v1", "PaymentStatusChanged.v1", "BackupCompleted.v1"})
	return nil
}

// RegisterServices registers services.notification.recent.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "recent", json.Unmarshal, json.Marshal, m.recent,
	); err != nil {
		return fmt.Errorf("failed to register recent service: %w", err)
	}
	return nil
}

func (m *Module) recent(_ context.Context, req RecentRequest, _ *mono.Msg) (RecentResponse, error) {
	return RecentResponse{Notifications: m.outbox.Recent(req.Limit), Total: m.outbox.Total()}, nil
}

func (m *Module) handleOrderPlaced(_ context.Context, evt events.OrderPlacedEvent, _ *mono.Msg) error {
	m.notify(Notification{
		Kind:      "order_placed",
		Channel:   ChannelEmail,
		Recipient: evt.Email,
		Subject:   fmt.Sprintf("Order %s received", evt.OrderNumber),
		Message:   fmt.Sprintf("Thank you for your order %s. Total: %s.", evt.OrderNumber, evt.Total),
		Reference: evt.OrderNumber,
	})
	return nil
}

func (m *Module) handleOrderStatusChanged(_ context.Context, evt events.OrderStatusChangedEvent, _ *mono.Msg) error {
	n := Notification{
		Kind:      "order_" + evt.To,
		Channel:   ChannelEmail,
		Recipient: evt.Email,
		Subject:   fmt.Sprintf("Order %s is now %s", evt.OrderNumber, evt.To),
		Reference: evt.OrderNumber,
	}
	switch evt.To {
	case "shipped":
		n.Message = fmt.Sprintf("Your order %s has shipped.", evt.OrderNumber)
		if evt.TrackingNumber != "" {
			n.Message = fmt.Sprintf("Your order %s has shipped with %s, tracking number %s.",
				evt.OrderNumber, evt.Carrier, evt.TrackingNumber)
		}
	case "delivered":
		n.Message = fmt.Sprintf("Your order %s was delivered.", evt.OrderNumber)
	case "cancelled":
		n.Message = fmt.Sprintf("Your order %s was cancelled.", evt.OrderNumber)
	case "refunded":
		n.Message = fmt.Sprintf("Your order %s was refunded.", evt.OrderNumber)
	default:
		n.Message = fmt.Sprintf("Your order %s moved from %s to %s.", evt.OrderNumber, evt.From, evt.To)
	}
	m.notify(n)
	return nil
}

func (m *Module) handlePaymentStatusChanged(_ context.Context, evt events.PaymentStatusChangedEvent, _ *mono.Msg) error {
	var message string
	switch evt.Status {
	case "paid":
		message = fmt.Sprintf("We received your payment for order %s.", evt.OrderNumber)
	case "failed":
		message = fmt.Sprintf("Payment for order %s failed. Please try again.", evt.OrderNumber)
	default:
		return nil
	}
	m.notify(Notification{
		Kind:      "payment_" + evt.Status,
		Channel:   ChannelEmail,
		Recipient: evt.Email,
		Subject:   fmt.Sprintf("Payment %s for order %s", evt.Status, evt.OrderNumber),
		Message:   message,
		Reference: evt.OrderNumber,
	})
	return nil
}

func (m *Module) handleBackupCompleted(_ context.Context, evt events.BackupCompletedEvent, _ *mono.Msg) error {
	n := Notification{
		Kind:      "backup_succeeded",
		Channel:   ChannelOps,
		Subject:   "Backup completed",
		Message:   fmt.Sprintf("Backup %s stored %s (%d bytes).", evt.RunID, evt.ObjectName, evt.Size),
		Reference: evt.RunID,
	}
	if !evt.Succeeded {
		n.Kind = "backup_failed"
		n.Subject = "Backup failed"
		n.Message = fmt.Sprintf("Backup %s failed: %s", evt.RunID, evt.Error)
	}
	m.notify(n)
	return nil
}

func (m *Module) notify(n Notification) {
	n.ID = uuid.NewString()
	n.CreatedAt = m.now()
	m.outbox.Add(n)
	m.logger.Info("Notification recorded",
		"kind", n.Kind,
		"channel", n.Channel,
		"reference", n.Reference)
}
