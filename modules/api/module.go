// Package api serves the storefront's public, customer and admin HTTP routes.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/wighaven/storefront/modules/auth"
	"github.com/wighaven/storefront/modules/backup"
	"github.com/wighaven/storefront/modules/cart"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/discount"
	"github.com/wighaven/storefront/modules/order"
)

// Config holds the HTTP server settings.
type Config struct {
	Port      int
	AccessLog bool
	Timeout   time.Duration
}

// Module is the HTTP API module.
type Module struct {
	app      *fiber.App
	config   Config
	authPort auth.AuthPort

	authModule     *auth.Module
	catalogModule  *catalog.Module
	discountModule *discount.Module
	cartModule     *cart.Module
	orderModule    *order.Module
	backupModule   *backup.Module
	limiter        RateLimiter
	health         map[string]HealthChecker

	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new API module.
func NewModule(cfg Config, logger types.Logger) *Module {
	if cfg.Port == 0 {
		cfg.Port = 3000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Module{config: cfg, health: map[string]HealthChecker{}, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies lists the modules that must start before the API.
func (m *Module) Dependencies() []string {
	return []string{"auth", "catalog", "discount", "cart", "order", "backup"}
}

// SetDependencyServiceContainer builds the token validator over the auth
// service. The other dependencies are used in-process through their modules.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "auth" {
		m.authPort = auth.NewAuthAdapter(container)
	}
}

// SetAuthModule sets the account service provider.
func (m *Module) SetAuthModule(am *auth.Module) { m.authModule = am }

// SetCatalogModule sets the catalog dependency.
func (m *Module) SetCatalogModule(cm *catalog.Module) { m.catalogModule = cm }

// SetDiscountModule sets the discount dependency.
func (m *Module) SetDiscountModule(dm *discount.Module) { m.discountModule = dm }

// SetCartModule sets the cart dependency.
func (m *Module) SetCartModule(cm *cart.Module) { m.cartModule = cm }

// SetOrderModule sets the order dependency.
func (m *Module) SetOrderModule(om *order.Module) { m.orderModule = om }

// SetBackupModule sets the backup dependency.
func (m *Module) SetBackupModule(bm *backup.Module) { m.backupModule = bm }

// SetRateLimiter installs the limiter for the coupon, checkout and auth routes.
func (m *Module) SetRateLimiter(l RateLimiter) { m.limiter = l }

// AddHealthCheck includes a module in GET /health.
func (m *Module) AddHealthCheck(name string, hc HealthChecker) {
	m.health[name] = hc
}

// Start resolves the services and starts the HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.authPort == nil {
		return fmt.Errorf("auth dependency not set")
	}
	svc, err := m.services()
	if err != nil {
		return err
	}

	m.app = NewApp(RouterConfig{
		Services:  svc,
		Auth:      m.authPort,
		Limiter:   m.limiter,
		Health:    m.health,
		AccessLog: m.config.AccessLog,
		Timeout:   m.config.Timeout,
		Logger:    m.logger,
	})

	addr := fmt.Sprintf(":%d", m.config.Port)
	go func() {
		if err := m.app.Listen(addr); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "addr", addr)
	return nil
}

func (m *Module) services() (Services, error) {
	switch {
	case m.authModule == nil || m.authModule.Service() == nil:
		return Services{}, fmt.Errorf("auth module not set")
	case m.catalogModule == nil || m.catalogModule.Service() == nil:
		return Services{}, fmt.Errorf("catalog module not set")
	case m.discountModule == nil || m.discountModule.Service() == nil:
		return Services{}, fmt.Errorf("discount module not set")
	case m.cartModule == nil || m.cartModule.Service() == nil:
		return Services{}, fmt.Errorf("cart module not set")
	case m.orderModule == nil || m.orderModule.Service() == nil:
		return Services{}, fmt.Errorf("order module not set")
	case m.backupModule == nil || m.backupModule.Service() == nil:
		return Services{}, fmt.Errorf("backup module not set")
	}
	return Services{
		Catalog:   m.catalogModule.Service(),
		Discounts: m.discountModule.Service(),
		Carts:     m.cartModule.Service(),
		Orders:    m.orderModule.Service(),
		Accounts:  m.authModule.Service(),
		Backups:   m.backupModule.Service(),
	}, nil
}

// Stop shuts down the HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	return m.app.Shutdown()
}

// Health reports whether the server is up.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{"port": m.config.Port},
	}
}
