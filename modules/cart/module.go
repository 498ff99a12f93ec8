package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
	nanoid "github.com/jaevor/go-nanoid"
	domain "github.com/wighaven/storefront/domain/cart"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/discount"
)

// BucketName is the kv-jetstream bucket holding cart sessions.
const BucketName = "carts"

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Module implements the cart engine using the kv-jetstream plugin.
type Module struct {
	kv       *kvjetstream.PluginModule
	store    *KVStore
	service  *Service
	variants VariantSource
	coupons  CouponValidator
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new cart module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cart"
}

// SetPlugin receives the KV plugin from the framework.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "kv" {
		kv, ok := plugin.(*kvjetstream.PluginModule)
		if !ok {
			m.logger.Error("Invalid plugin type for kv",
				"alias", alias,
				"expected", "*kvjetstream.PluginModule")
			return
		}
		m.kv = kv
	}
}

// Dependencies returns the modules whose services the cart calls.
func (m *Module) Dependencies() []string {
	return []string{"catalog", "discount"}
}

// SetDependencyServiceContainer builds adapters over the dependency services.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "catalog":
		m.variants = catalog.NewVariantAdapter(container)
	case "discount":
		m.coupons = discount.NewValidatorAdapter(container)
	}
}

// Start opens the carts bucket and creates the service.
func (m *Module) Start(_ context.Context) error {
	if m.kv == nil {
		return fmt.Errorf("required plugin 'kv' not registered")
	}
	if m.variants == nil || m.coupons == nil {
		return fmt.Errorf("catalog and discount dependencies not set")
	}
	bucket := m.kv.Bucket(BucketName)
	if bucket == nil {
		return fmt.Errorf("bucket '%s' not found in KV plugin", BucketName)
	}
	newID, err := nanoid.CustomASCII(idAlphabet, 21)
	if err != nil {
		return fmt.Errorf("failed to create id generator: %w", err)
	}
	m.store = NewKVStore(bucket)
	m.service = NewService(m.store, m.variants, m.coupons, newID, m.logger)
	m.logger.Info("Cart module started", "bucket", BucketName)
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Cart module stopped")
	return nil
}

// Service returns the cart service.
func (m *Module) Service() *Service {
	return m.service
}

// Health reports the number of live cart sessions.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	count, err := m.store.Count()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("kv error: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"carts": count},
	}
}

// RegisterServices registers services.cart.get and services.cart.clear.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "get", json.Unmarshal, json.Marshal, m.getCart,
	); err != nil {
		return fmt.Errorf("failed to register get service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "clear", json.Unmarshal, json.Marshal, m.clearCart,
	); err != nil {
		return fmt.Errorf("failed to register clear service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"get", "clear"})
	return nil
}

func (m *Module) getCart(ctx context.Context, req GetCartRequest, _ *mono.Msg) (GetCartResponse, error) {
	return m.reply(m.service.Get(ctx, req.ID))
}

func (m *Module) clearCart(ctx context.Context, req GetCartRequest, _ *mono.Msg) (GetCartResponse, error) {
	return m.reply(m.service.Clear(ctx, req.ID))
}

func (m *Module) reply(snap *Snapshot, err error) (GetCartResponse, error) {
	if errors.Is(err, domain.ErrNotFound) {
		return GetCartResponse{Error: err.Error()}, nil
	}
	if err != nil {
		return GetCartResponse{}, err
	}
	return GetCartResponse{Cart: snap}, nil
}
