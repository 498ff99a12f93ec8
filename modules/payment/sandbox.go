package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// SandboxGateway is an in-memory provider. Payments start pending and settle
// through Settle, which stands in for the customer completing payment.
type SandboxGateway struct {
	mu       sync.Mutex
	byOrder  map[string]string
	payments map[string]*sandboxPayment
	failures map[string]string
}

type sandboxPayment struct {
	orderNumber string
	status      Status
}

// NewSandboxGateway creates an empty sandbox.
func NewSandboxGateway() *SandboxGateway {
	return &SandboxGateway{
		byOrder:  make(map[string]string),
		payments: make(map[string]*sandboxPayment),
		failures: make(map[string]string),
	}
}

func (g *SandboxGateway) Name() string {
	return "sandbox"
}

// FailNext makes the next call to op ("initiate", "verify" or "refund")
// return a ProviderError with message.
func (g *SandboxGateway) FailNext(op, message string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = message
}

// Settle sets the status of a payment.
func (g *SandboxGateway) Settle(reference string, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.payments[reference]
	if !ok {
		return ErrUnknownReference
	}
	p.status = status
	return nil
}

// Reference returns the reference issued for an order number.
func (g *SandboxGateway) Reference(orderNumber string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref, ok := g.byOrder[orderNumber]
	return ref, ok
}

// failure must be called with g.mu held.
func (g *SandboxGateway) failure(op string) error {
	msg, ok := g.failures[op]
	if !ok {
		return nil
	}
	delete(g.failures, op)
	return &ProviderError{Op: op, Message: msg}
}

func (g *SandboxGateway) InitiatePayment(_ context.Context, in Initiation) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("initiate"); err != nil {
		return nil, err
	}
	if ref, ok := g.byOrder[in.OrderNumber]; ok {
		return &Result{Reference: ref, Status: g.payments[ref].status}, nil
	}
	ref := "sbx_" + uuid.NewString()
	g.byOrder[in.OrderNumber] = ref
	g.payments[ref] = &sandboxPayment{orderNumber: in.OrderNumber, status: StatusPending}
	return &Result{Reference: ref, Status: StatusPending}, nil
}

func (g *SandboxGateway) VerifyPayment(_ context.Context, reference string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("verify"); err != nil {
		return "", err
	}
	p, ok := g.payments[reference]
	if !ok {
		return "", ErrUnknownReference
	}
	return p.status, nil
}

func (g *SandboxGateway) Refund(_ context.Context, reference string) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("refund"); err != nil {
		return "", err
	}
	p, ok := g.payments[reference]
	if !ok {
		return "", ErrUnknownReference
	}
	switch p.status {
	case StatusPaid:
		p.status = StatusRefunded
	case StatusRefunded:
	default:
		return "", &ProviderError{Op: "refund", Message: "payment is " + string(p.status)}
	}
	return p.status, nil
}
