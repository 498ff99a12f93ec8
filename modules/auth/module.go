package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	domain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/database"
)

// Config configures token signing and the bootstrap admin.
type Config struct {
	JWT           JWTConfig
	BcryptCost    int
	AdminEmail    string
	AdminPassword string
}

// Module provides authentication services.
type Module struct {
	db      *database.PluginModule
	config  Config
	service *Service
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.UsePluginModule       = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new auth module.
func NewModule(cfg Config, logger types.Logger) *Module {
	return &Module{config: cfg, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// SetPlugin receives the database plugin.
func (m *Module) SetPlugin(alias string, plugin mono.PluginModule) {
	if alias != "db" {
		return
	}
	db, ok := plugin.(*database.PluginModule)
	if !ok {
		m.logger.Error("Invalid plugin type for db", "alias", alias)
		return
	}
	m.db = db
}

// Start builds the service and bootstraps the admin account.
func (m *Module) Start(ctx context.Context) error {
	if m.db == nil {
		return fmt.Errorf("required plugin 'db' not registered")
	}
	jwtManager := NewJWTManager(m.config.JWT)
	if jwtManager.UsesDevSecret() {
		m.logger.Warn("JWT_SECRET not set, using the development secret")
	}
	m.service = NewService(
		domain.NewRepository(m.db.DB()),
		NewPasswordHasher(m.config.BcryptCost),
		jwtManager,
		m.logger,
	)

	if m.config.AdminEmail != "" && m.config.AdminPassword != "" {
		if _, err := m.service.EnsureAdmin(ctx, m.config.AdminEmail, m.config.AdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	m.logger.Info("Auth module started")
	return nil
}

// Stop shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// Service returns the auth service.
func (m *Module) Service() *Service {
	return m.service
}

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.service == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"dev_secret": m.service.jwt.UsesDevSecret()},
	}
}

// RegisterServices registers validate-token and get-user.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "get-user", json.Unmarshal, json.Marshal, m.handleGetUser,
	); err != nil {
		return fmt.Errorf("failed to register get-user service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"validate-token", "get-user"})
	return nil
}

// Validation failures are replies, not transport errors.
func (m *Module) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		msg := ErrInvalidToken.Error()
		if errors.Is(err, ErrExpiredToken) {
			msg = ErrExpiredToken.Error()
		}
		return ValidateTokenResponse{Valid: false, Error: msg}, nil
	}
	return ValidateTokenResponse{
		Valid:  true,
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

func (m *Module) handleGetUser(ctx context.Context, req GetUserRequest, _ *mono.Msg) (GetUserResponse, error) {
	u, err := m.service.GetUser(ctx, req.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return GetUserResponse{Error: err.Error()}, nil
	}
	if err != nil {
		return GetUserResponse{}, err
	}
	return GetUserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}, nil
}
