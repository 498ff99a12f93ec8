package payment

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxGateway(t *testing.T) {
	g := NewSandboxGateway()
	ctx := context.Background()
	in := Initiation{OrderNumber: "WH-00001", Amount: decimal.NewFromInt(225), Provider: "momo"}

	res, err := g.InitiatePayment(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	again, err := g.InitiatePayment(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, res.Reference, again.Reference, "initiation is idempotent per order number")

	_, err = g.Refund(ctx, res.Reference)
	var pe *ProviderError
	assert.ErrorAs(t, err, &pe, "pending payments cannot be refunded")

	require.NoError(t, g.Settle(res.Reference, StatusPaid))
	st, err := g.VerifyPayment(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, st)

	st, err = g.Refund(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, st)

	_, err = g.VerifyPayment(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, err = g.InitiatePayment(ctx, Initiation{OrderNumber: "WH-2"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSandboxGateway_FailNext(t *testing.T) {
	g := NewSandboxGateway()
	g.FailNext("initiate", "provider down")

	_, err := g.InitiatePayment(context.Background(), Initiation{OrderNumber: "WH-1", Amount: decimal.NewFromInt(1)})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "provider down", pe.Message)

	_, err = g.InitiatePayment(context.Background(), Initiation{OrderNumber: "WH-1", Amount: decimal.NewFromInt(1)})
	assert.NoError(t, err, "failure applies once")
}

// startProvider serves a fake provider API on a random local port.
func startProvider(t *testing.T) (string, *fakeProvider) {
	t.Helper()
	p := &fakeProvider{status: map[string]Status{}, keys: map[string]string{}}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer secret" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "bad key"})
		}
		return c.Next()
	})
	app.Post("/payments", func(c *fiber.Ctx) error {
		var in Initiation
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		key := c.Get("Idempotency-Key")
		ref, ok := p.keys[key]
		if !ok {
			ref = "ref-" + in.OrderNumber
			p.keys[key] = ref
			p.status[ref] = StatusPending
		}
		return c.JSON(fiber.Map{"reference": ref, "status": p.status[ref], "checkout_url": "https://pay.example/" + ref})
	})
	app.Get("/payments/:ref", func(c *fiber.Ctx) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		st, ok := p.status[c.Params("ref")]
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "not found"})
		}
		return c.JSON(fiber.Map{"reference": c.Params("ref"), "status": st})
	})
	app.Post("/payments/:ref/refund", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"message": "acquirer unavailable"})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String(), p
}

type fakeProvider struct {
	mu     sync.Mutex
	status map[string]Status
	keys   map[string]string
}

func TestHTTPGateway(t *testing.T) {
	base, provider := startProvider(t)
	g := NewHTTPGateway(base+"/", "secret", 2*time.Second)
	ctx := context.Background()

	in := Initiation{OrderNumber: "WH-00007", Amount: decimal.RequireFromString("59.99"), Provider: "card"}
	res, err := g.InitiatePayment(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "ref-WH-00007", res.Reference)
	assert.Equal(t, StatusPending, res.Status)
	assert.NotEmpty(t, res.CheckoutURL)

	again, err := g.InitiatePayment(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, res.Reference, again.Reference)
	assert.Len(t, provider.keys, 1)

	provider.mu.Lock()
	provider.status[res.Reference] = StatusPaid
	provider.mu.Unlock()

	st, err := g.VerifyPayment(ctx, res.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, st)

	_, err = g.VerifyPayment(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownReference)

	_, err = g.Refund(ctx, res.Reference)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, fiber.StatusBadGateway, pe.StatusCode)
	assert.Equal(t, "acquirer unavailable", pe.Message)

	bad := NewHTTPGateway(base, "wrong", time.Second)
	_, err = bad.VerifyPayment(ctx, res.Reference)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, fiber.StatusUnauthorized, pe.StatusCode)
}

func TestReplyError_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, got error)
	}{
		{"provider", &ProviderError{Op: "refund", StatusCode: 502, Message: "down"}, func(t *testing.T, got error) {
			var pe *ProviderError
			require.ErrorAs(t, got, &pe)
			assert.Equal(t, 502, pe.StatusCode)
			assert.Equal(t, "refund", pe.Op)
		}},
		{"unknown reference", ErrUnknownReference, func(t *testing.T, got error) {
			assert.ErrorIs(t, got, ErrUnknownReference)
		}},
		{"invalid", errors.Join(ErrInvalidRequest), func(t *testing.T, got error) {
			assert.ErrorIs(t, got, ErrInvalidRequest)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, toReplyError(tt.err).Err())
		})
	}
	assert.Nil(t, toReplyError(nil))
	assert.NoError(t, (*ReplyError)(nil).Err())
}
