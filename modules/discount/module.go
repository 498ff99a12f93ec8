package discount

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	domain "github.com/wighaven/storefront/domain/discount"
	"github.com/wighaven/storefront/modules/database"
)

// Module provides the discount engine as a mono module.
type Module struct {
	db      *database.PluginModule
	service *Service
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new discount module.
func NewModule(logger types.Logger) *Module {
	return &Module{logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "discount"
}

// SetPlugin receives the database plugin.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias == "db" {
		if db, ok := plugin.(*database.PluginModule); ok {
			m.db = db
		}
	}
}

// Start creates the service.
func (m *Module) Start(_ context.Context) error {
	if m.db == nil {
		return fmt.Errorf("required plugin 'db' not registered")
	}
	m.service = NewService(domain.NewRepository(m.db.DB()), m.logger)
	m.logger.Info("Discount module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Discount module stopped")
	return nil
}

// Service returns the discount service.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterServices registers services.discount.validate.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "validate", json.Unmarshal, json.Marshal, m.validate,
	); err != nil {
		return fmt.Errorf("failed to register validate service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"validate"})
	return nil
}

func (m *Module) validate(ctx context.Context, req ValidateRequest, _ *mono.Msg) (ValidateResponse, error) {
	v, err := m.service.Validate(ctx, req.Code, req.Subtotal)
	if err != nil {
		if domain.IsRuleError(err) {
			return ValidateResponse{Code: domain.NormalizeCode(req.Code), Reason: err.Error()}, nil
		}
		return ValidateResponse{}, err
	}
	return ValidateResponse{Valid: true, Code: v.Code, DiscountAmount: v.DiscountAmount}, nil
}
