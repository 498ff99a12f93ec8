package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Config selects the gateway. An empty GatewayURL uses the sandbox.
type Config struct {
	GatewayURL string
	APIKey     string
	Timeout    time.Duration
}

// Module exposes the payment gateway as request-reply services.
type Module struct {
	config  Config
	gateway Gateway
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new payment module.
func NewModule(cfg Config, logger types.Logger) *Module {
	return &Module{config: cfg, logger: logger}
}

// NewModuleWithGateway creates a payment module around an existing gateway.
func NewModuleWithGateway(gateway Gateway, logger types.Logger) *Module {
	return &Module{gateway: gateway, logger: logger}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "payment"
}

// Start selects the gateway.
func (m *Module) Start(_ context.Context) error {
	if m.gateway == nil {
		if m.config.GatewayURL == "" {
			m.gateway = NewSandboxGateway()
			m.logger.Warn("PAYMENT_GATEWAY_URL not set, using sandbox payments")
		} else {
			m.gateway = NewHTTPGateway(m.config.GatewayURL, m.config.APIKey, m.config.Timeout)
		}
	}
	m.logger.Info("Payment module started", "gateway", m.gateway.Name())
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Payment module stopped")
	return nil
}

// Gateway returns the active gateway.
func (m *Module) Gateway() Gateway {
	return m.gateway
}

// Health reports the active gateway.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.gateway == nil {
		return mono.HealthStatus{Healthy: false, Message: "not started"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"gateway": m.gateway.Name()},
	}
}

// RegisterServices registers initiate, status and refund.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "initiate", json.Unmarshal, json.Marshal, m.initiate,
	); err != nil {
		return fmt.Errorf("failed to register initiate service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "status", json.Unmarshal, json.Marshal, m.status,
	); err != nil {
		return fmt.Errorf("failed to register status service: %w", err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, "refund", json.Unmarshal, json.Marshal, m.refund,
	); err != nil {
		return fmt.Errorf("failed to register refund service: %w", err)
	}
	m.logger.Info("Registered services", "services", []string{"initiate", "status", "refund"})
	return nil
}

func (m *Module) initiate(ctx context.Context, req InitiateRequest, _ *mono.Msg) (InitiateResponse, error) {
	res, err := m.gateway.InitiatePayment(ctx, req.Initiation)
	if err != nil {
		m.logger.Warn("Payment initiation failed", "orderNumber", req.OrderNumber, "error", err)
		return InitiateResponse{Error: toReplyError(err)}, nil
	}
	return InitiateResponse{Result: res}, nil
}

func (m *Module) status(ctx context.Context, req ReferenceRequest, _ *mono.Msg) (StatusResponse, error) {
	st, err := m.gateway.VerifyPayment(ctx, req.Reference)
	return StatusResponse{Reference: req.Reference, Status: st, Error: toReplyError(err)}, nil
}

func (m *Module) refund(ctx context.Context, req ReferenceRequest, _ *mono.Msg) (StatusResponse, error) {
	st, err := m.gateway.Refund(ctx, req.Reference)
	if err != nil {
		m.logger.Warn("Refund failed", "reference", req.Reference, "error", err)
	}
	return StatusResponse{Reference: req.Reference, Status: st, Error: toReplyError(err)}, nil
}

func toReplyError(err error) *ReplyError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	switch {
	case errors.As(err, &pe):
		return &ReplyError{Kind: KindProvider, Op: pe.Op, StatusCode: pe.StatusCode, Message: pe.Message}
	case errors.Is(err, ErrUnknownReference):
		return &ReplyError{Kind: KindUnknownReference, Message: err.Error()}
	case errors.Is(err, ErrInvalidRequest):
		return &ReplyError{Kind: KindInvalid, Message: err.Error()}
	}
	return &ReplyError{Kind: KindProvider, Message: err.Error()}
}

// Err converts a reply error back into a gateway error.
func (e *ReplyError) Err() error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindUnknownReference:
		return ErrUnknownReference
	case KindInvalid:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, e.Message)
	}
	return &ProviderError{Op: e.Op, StatusCode: e.StatusCode, Message: e.Message}
}
