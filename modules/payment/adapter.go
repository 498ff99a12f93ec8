package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// GatewayAdapter implements Gateway over the payment module's services, for
// modules that declare a dependency on "payment".
type GatewayAdapter struct {
	container mono.ServiceContainer
}

// NewGatewayAdapter creates a new GatewayAdapter.
func NewGatewayAdapter(container mono.ServiceContainer) *GatewayAdapter {
	return &GatewayAdapter{container: container}
}

func (a *GatewayAdapter) Name() string {
	return "payment-service"
}

func (a *GatewayAdapter) InitiatePayment(ctx context.Context, in Initiation) (*Result, error) {
	req := InitiateRequest{Initiation: in}
	var resp InitiateResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "initiate", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, &ProviderError{Op: "initiate", Message: fmt.Sprintf("payment service unavailable: %v", err)}
	}
	if resp.Error != nil {
		return nil, resp.Error.Err()
	}
	return resp.Result, nil
}

func (a *GatewayAdapter) VerifyPayment(ctx context.Context, reference string) (Status, error) {
	return a.call(ctx, "status", reference)
}

func (a *GatewayAdapter) Refund(ctx context.Context, reference string) (Status, error) {
	return a.call(ctx, "refund", reference)
}

func (a *GatewayAdapter) call(ctx context.Context, service, reference string) (Status, error) {
	req := ReferenceRequest{Reference: reference}
	var resp StatusResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, service, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return "", &ProviderError{Op: service, Message: fmt.Sprintf("payment service unavailable: %v", err)}
	}
	if resp.Error != nil {
		return "", resp.Error.Err()
	}
	return resp.Status, nil
}
