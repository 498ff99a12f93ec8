package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HTTPGateway talks JSON to a hosted payment provider. Every initiation sends
// the order number as Idempotency-Key, so retries never charge twice.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPGateway creates a gateway for the provider at baseURL.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
	}
}

func (g *HTTPGateway) Name() string {
	return "http"
}

type providerStatus struct {
	Reference   string `json:"reference"`
	Status      Status `json:"status"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

type providerError struct {
	Message string `json:"message"`
}

func (g *HTTPGateway) InitiatePayment(ctx context.Context, in Initiation) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	a := fiber.Post(g.baseURL+"/payments").
		Set("Idempotency-Key", in.OrderNumber).
		JSON(in)
	var out providerStatus
	if err := g.do(ctx, "initiate", a, &out); err != nil {
		return nil, err
	}
	return &Result{Reference: out.Reference, Status: out.Status, CheckoutURL: out.CheckoutURL}, nil
}

func (g *HTTPGateway) VerifyPayment(ctx context.Context, reference string) (Status, error) {
	a := fiber.Get(g.baseURL + "/payments/" + url.PathEscape(reference))
	var out providerStatus
	if err := g.do(ctx, "verify", a, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (g *HTTPGateway) Refund(ctx context.Context, reference string) (Status, error) {
	a := fiber.Post(g.baseURL+"/payments/"+url.PathEscape(reference)+"/refund").
		Set("Idempotency-Key", "refund-"+reference)
	var out providerStatus
	if err := g.do(ctx, "refund", a, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// do sends the request and decodes a 2xx body into out. The request timeout
// is the smaller of the gateway timeout and the context deadline.
func (g *HTTPGateway) do(ctx context.Context, op string, a *fiber.Agent, out *providerStatus) error {
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return ctx.Err()
	}
	if g.apiKey != "" {
		a.Set(fiber.HeaderAuthorization, "Bearer "+g.apiKey)
	}
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON).Timeout(timeout)

	code, body, errs := a.Bytes()
	if len(errs) > 0 {
		return &ProviderError{Op: op, Message: errors.Join(errs...).Error()}
	}
	if code == fiber.StatusNotFound && op != "initiate" {
		return ErrUnknownReference
	}
	if code < 200 || code > 299 {
		var pe providerError
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &pe) == nil && pe.Message != "" {
			msg = pe.Message
		}
		return &ProviderError{Op: op, StatusCode: code, Message: msg}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{Op: op, StatusCode: code, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if !out.Status.Valid() {
		return &ProviderError{Op: op, StatusCode: code, Message: fmt.Sprintf("unknown status %q", out.Status)}
	}
	return nil
}
