package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	domain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/events"
	"github.com/wighaven/storefront/modules/cart"
	"github.com/wighaven/storefront/modules/database"
	"github.com/wighaven/storefront/modules/payment"
)

// Module provides checkout and the order workflow as a mono module.
type Module struct {
	db         *database.PluginModule
	carts      CartPort
	gateway    payment.Gateway
	tasks      TaskSubmitter
	eventBus   mono.EventBus
	config     Config
	service    *Service
	reconciler *Reconciler
	logger     types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
)

// NewModule creates a new order module. tasks may be nil, in which case
// reconciliation runs on the reconciler goroutine.
func NewModule(cfg Config, tasks TaskSubmitter, logger types.Logger) *Module {
	return &Module{config: cfg, tasks: tasks, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "order"
}

// SetPlugin receives the database plugin.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "db" {
		if db, ok := plugin.(*database.PluginModule); ok {
			m.db = db
		}
	}
}

// Dependencies returns the modules whose services checkout calls.
func (m *Module) Dependencies() []string {
	return []string{"cart", "payment"}
}

// SetDependencyServiceContainer builds adapters over the dependency services.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "cart":
		m.carts = cart.NewCheckoutAdapter(container)
	case "payment":
		m.gateway = payment.NewGatewayAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.OrderPlacedV1.ToBase(),
		events.OrderStatusChangedV1.ToBase(),
		events.PaymentStatusChangedV1.ToBase(),
	}
}

// Start creates the service and starts the payment reconciler.
func (m *Module) Start(_ context.Context) error {
	if m.db == nil {
		return fmt.Errorf("required plugin 'db' not registered")
	}
	if m.carts == nil || m.gateway == nil {
		return fmt.Errorf("cart and payment dependencies not set")
	}
	m.service = NewService(m.db.DB(), m.carts, m.gateway, m.config, m.logger)
	m.service.SetEventBus(m.eventBus)
	m.reconciler = NewReconciler(m.service, m.tasks, m.config.ReconcileInterval, m.logger)
	m.reconciler.Start()
	m.logger.Info("Order module started",
		"prefix", m.service.config.Prefix,
		"autoProcessPaid", m.config.AutoProcessPaid)
	return nil
}

// Stop stops the reconciler.
func (m *Module) Stop(_ context.Context) error {
	if m.reconciler != nil {
		m.reconciler.Stop()
	}
	m.logger.Info("Order module stopped")
	return nil
}

// Service returns the order service.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterServices registers services.order.get and services.order.update-status.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get", json.Unmarshal, json.Marshal, m.getOrder,
	); err != nil {
		return fmt.Errorf("failed to register get service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "update-status", json.Unmarshal, json.Marshal, m.updateStatus,
	); err != nil {
		return fmt.Errorf("failed to register update-status service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"get", "update-status"})
	return nil
}

func (m *Module) getOrder(ctx context.Context, req GetOrderRequest, _ *mono.Msg) (OrderResponse, error) {
	return reply(m.service.Get(ctx, req.OrderNumber))
}

func (m *Module) updateStatus(ctx context.Context, req UpdateStatusRequest, _ *mono.Msg) (OrderResponse, error) {
	actor := req.Actor
	if actor == "" {
		actor = "service"
	}
	return reply(m.service.UpdateStatus(ctx, req.OrderNumber, StatusInput{
		Status:         req.Status,
		Notes:          req.Notes,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Actor:          actor,
	}))
}

// reply turns business errors into an error message and keeps
// infrastructure failures as service errors.
func reply(o *domain.Order, err error) (OrderResponse, error) {
	if err == nil {
		return OrderResponse{Order: o}, nil
	}
	var pe *payment.ProviderError
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidTransition) ||
		errors.Is(err, domain.ErrInvalidStatus) ||
		errors.Is(err, domain.ErrNotRefundable) ||
		errors.Is(err, domain.ErrConcurrentUpdate) ||
		errors.As(err, &pe) {
		return OrderResponse{Error: err.Error()}, nil
	}
	return OrderResponse{}, err
}
