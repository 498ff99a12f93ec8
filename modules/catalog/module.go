package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	domain "github.com/wighaven/storefront/domain/catalog"
	"github.com/wighaven/storefront/events"
	"github.com/wighaven/storefront/modules/cache"
	"github.com/wighaven/storefront/modules/database"
)

// Module provides catalog services as a mono module.
type Module struct {
	db      *database.PluginModule
	cache   *cache.PluginModule
	repo    *domain.Repository
	service *Service
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new catalog module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "catalog"
}

// SetPlugin receives the database and cache plugins.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	switch alias {
	case "db":
		if db, ok := plugin.(*database.PluginModule); ok {
			m.db = db
		}
	case "cache":
		if c, ok := plugin.(*cache.PluginModule); ok {
			m.cache = c
		}
	}
}

// Start builds the repository and service once plugins are running.
func (m *Module) Start(_ context.Context) error {
	if m.db == nil {
		return fmt.Errorf("required plugin 'db' not registered")
	}
	var port cache.CacheService
	if m.cache != nil {
		port = m.cache.Port()
	}
	m.repo = domain.NewRepository(m.db.DB())
	m.service = NewService(m.repo, port, m.logger)
	m.logger.Info("Catalog module started", "cache", m.cache != nil && m.cache.Enabled())
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Catalog module stopped")
	return nil
}

// Service returns the catalog service.
func (m *Module) Service() *Service {
	return m.service
}

// Health reports database reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil || m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	status := m.db.Health(ctx)
	if !status.Healthy {
		return status
	}
	details := map[string]any{"cache_enabled": false}
	if m.cache != nil && m.cache.Enabled() {
		stats := m.cache.Port().Stats()
		details["cache_enabled"] = true
		details["cache_hits"] = stats.Hits
		details["cache_misses"] = stats.Misses
	}
	return mono.HealthStatus{Healthy: true, Message: "operational", Details: details}
}

// RegisterEventConsumers invalidates cached products whose stock changed.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.OrderPlacedV1, m.handleOrderPlaced, m); err != nil {
		return fmt.Errorf("failed to register OrderPlaced consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.OrderStatusChangedV1, m.handleOrderStatusChanged, m); err != nil {
		return fmt.Errorf("failed to register OrderStatusChanged consumer: %w", err)
	}
	m.logger.Info("Registered event consumers", "events", []string{"OrderPlaced.v1", "OrderStatusChanged.v1"})
	return nil
}

func (m *Module) handleOrderPlaced(ctx context.Context, evt events.OrderPlacedEvent, _ *mono.Msg) error {
	if m.service == nil {
		return nil
	}
	m.service.Invalidate(ctx, productIDs(evt.Lines)...)
	m.logger.Debug("Invalidated products after order", "orderNumber", evt.OrderNumber)
	return nil
}

func (m *Module) handleOrderStatusChanged(ctx context.Context, evt events.OrderStatusChangedEvent, _ *mono.Msg) error {
	if m.service == nil || !evt.StockRestored {
		return nil
	}
	m.service.Invalidate(ctx, productIDs(evt.Lines)...)
	m.logger.Debug("Invalidated products after stock restore", "orderNumber", evt.OrderNumber, "status", evt.To)
	return nil
}

func productIDs(lines []events.OrderLine) []string {
	seen := make(map[string]bool, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}
	return ids
}

// RegisterServices registers request-reply services in the service container.
// The framework prefixes them as services.catalog.<name>.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-variant", json.Unmarshal, json.Marshal, m.getVariants,
	); err != nil {
		return fmt.Errorf("failed to register get-variant service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-product", json.Unmarshal, json.Marshal, m.getProduct,
	); err != nil {
		return fmt.Errorf("failed to register get-product service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"get-variant", "get-product"})
	return nil
}

func (m *Module) getVariants(ctx context.Context, req GetVariantRequest, _ *mono.Msg) (GetVariantResponse, error) {
	if len(req.IDs) == 0 {
		return GetVariantResponse{Error: "ids are required"}, nil
	}
	variants, err := m.service.GetVariants(ctx, req.IDs)
	if err != nil {
		return GetVariantResponse{}, err
	}
	return GetVariantResponse{Variants: variants}, nil
}

func (m *Module) getProduct(ctx context.Context, req GetProductRequest, _ *mono.Msg) (GetProductResponse, error) {
	var (
		p   *domain.Product
		err error
	)
	switch {
	case req.ID != "":
		p, err = m.service.GetProduct(ctx, req.ID)
	case req.Slug != "":
		p, err = m.service.GetProductBySlug(ctx, req.Slug)
	default:
		return GetProductResponse{Error: "id or slug is required"}, nil
	}
	if errors.Is(err, domain.ErrProductNotFound) {
		return GetProductResponse{Error: err.Error()}, nil
	}
	if err != nil {
		return GetProductResponse{}, err
	}
	return GetProductResponse{Product: p}, nil
}
