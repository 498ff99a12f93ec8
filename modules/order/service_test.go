package order

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cartdomain "github.com/wighaven/storefront/domain/cart"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	discountdomain "github.com/wighaven/storefront/domain/discount"
	domain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/modules/database"
	"github.com/wighaven/storefront/modules/payment"
	"gorm.io/gorm"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

// memCarts is an in-memory CartPort.
type memCarts struct {
	mu    sync.Mutex
	carts map[string]*cartdomain.Cart
}

func (m *memCarts) Load(_ context.Context, id string) (*cartdomain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[id]
	if !ok {
		return nil, cartdomain.ErrNotFound
	}
	cp := *c
	cp.Items = append([]cartdomain.Item(nil), c.Items...)
	return &cp, nil
}

func (m *memCarts) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[id]; ok {
		c.Clear(time.Now())
	}
	return nil
}

func (m *memCarts) put(id, coupon string, lines map[string]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := cartdomain.New(id, time.Now())
	c.CouponCode = coupon
	for _, variantID := range []string{"var-a", "var-b"} {
		if qty, ok := lines[variantID]; ok {
			_, _ = c.Add(cartdomain.Item{VariantID: variantID, SKU: variantID, Quantity: qty}, time.Now())
		}
	}
	m.carts[id] = c
}

var baseTime = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	service *Service
	db      *gorm.DB
	carts   *memCarts
	gateway *payment.SandboxGateway
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, catalogdomain.NewRepository(db).Migrate())
	require.NoError(t, discountdomain.NewRepository(db).Migrate())
	require.NoError(t, domain.NewRepository(db).Migrate())

	ctx := context.Background()
	require.NoError(t, catalogdomain.NewRepository(db).CreateProduct(ctx, &catalogdomain.Product{
		ID:        "prod-1",
		Name:      "Body Wave Lace Front",
		Slug:      "body-wave-lace-front",
		BasePrice: decimal.NewFromInt(100),
		IsActive:  true,
		Variants: []catalogdomain.Variant{
			{ID: "var-a", SKU: "BW-18", Length: "18in", Price: decimal.NewFromInt(100), Stock: 5, IsActive: true},
			{ID: "var-b", SKU: "CAP-1", Price: decimal.NewFromInt(50), Stock: 1, IsActive: true},
		},
	}))

	discounts := discountdomain.NewRepository(db)
	require.NoError(t, discounts.Create(ctx, &discountdomain.Discount{
		ID: "d-save10", Code: "save10", Type: discountdomain.TypePercentage, Value: decimal.NewFromInt(10),
		StartsAt: baseTime.Add(-time.Hour), ExpiresAt: baseTime.Add(30 * 24 * time.Hour), IsActive: true,
	}))
	require.NoError(t, discounts.Create(ctx, &discountdomain.Discount{
		ID: "d-expired5", Code: "EXPIRED5", Type: discountdomain.TypeFixed, Value: decimal.NewFromInt(5),
		StartsAt: baseTime.Add(-48 * time.Hour), ExpiresAt: baseTime.Add(-time.Hour), IsActive: true,
	}))

	carts := &memCarts{carts: map[string]*cartdomain.Cart{}}
	gateway := payment.NewSandboxGateway()
	svc := NewService(db, carts, gateway, Config{
		Prefix:            "WH",
		AutoProcessPaid:   true,
		ReconcileInterval: time.Minute,
		PaymentExpiry:     time.Hour,
	}, &mockLogger{})
	svc.now = func() time.Time { return baseTime }

	return &testEnv{service: svc, db: db, carts: carts, gateway: gateway}
}

func (e *testEnv) stock(t *testing.T, variantID string) int {
	t.Helper()
	v, err := catalogdomain.NewRepository(e.db).GetVariant(context.Background(), variantID)
	require.NoError(t, err)
	return v.Stock
}

func checkoutRequest(cartID string) CheckoutRequest {
	return CheckoutRequest{
		CartID:          cartID,
		Contact:         domain.Contact{Name: "Ada Lovelace", Email: "Ada@Example.com", Phone: "+15550100"},
		ShippingAddress: domain.Address{Line1: "1 Analytical Way", City: "London", Country: "gb"},
		Provider:        "momo",
	}
}

func TestCheckout_Save10(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.carts.put("cart-1", "SAVE10", map[string]int{"var-a": 2, "var-b": 1})

	res, err := env.service.Checkout(ctx, checkoutRequest("cart-1"))
	require.NoError(t, err)
	o := res.Order

	assert.Equal(t, "WH-00001", o.OrderNumber)
	assert.True(t, o.Subtotal.Equal(decimal.NewFromInt(250)), "subtotal %s", o.Subtotal)
	assert.True(t, o.Discount.Equal(decimal.NewFromInt(25)), "discount %s", o.Discount)
	assert.True(t, o.Total.Equal(decimal.NewFromInt(225)), "total %s", o.Total)
	assert.Equal(t, "SAVE10", o.CouponCode)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "ada@example.com", o.Contact.Email)
	assert.Equal(t, "GB", o.BillingAddress.Country, "billing defaults to shipping")
	require.Len(t, o.Items, 2)

	require.NotNil(t, res.Payment)
	assert.Empty(t, res.PaymentError)
	assert.Equal(t, res.Payment.Reference, o.PaymentReference)

	assert.Equal(t, 3, env.stock(t, "var-a"))
	assert.Equal(t, 0, env.stock(t, "var-b"))

	d, err := discountdomain.NewRepository(env.db).GetByCode(ctx, "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, 1, d.UsedCount)

	c, err := env.carts.Load(ctx, "cart-1")
	require.NoError(t, err)
	assert.Empty(t, c.Items, "cart is cleared after the order is stored")

	stored, err := env.service.Get(ctx, "wh-00001")
	require.NoError(t, err)
	assert.Equal(t, o.ID, stored.ID)
	for _, it := range stored.Items {
		if it.VariantID == "var-a" {
			assert.Equal(t, "BW-18", it.SKU)
			assert.Equal(t, "18in", it.VariantLabel)
			assert.True(t, it.UnitPrice.Equal(decimal.NewFromInt(100)), "price frozen from the variant")
		}
	}
}

func TestCheckout_InsufficientStockChangesNothing(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.carts.put("cart-1", "", map[string]int{"var-a": 2, "var-b": 2})

	_, err := env.service.Checkout(ctx, checkoutRequest("cart-1"))
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Lines, 1)
	assert.Equal(t, "var-b", stockErr.Lines[0].VariantID)
	assert.Equal(t, 2, stockErr.Lines[0].Requested)
	assert.Equal(t, 1, stockErr.Lines[0].Available)

	assert.Equal(t, 5, env.stock(t, "var-a"))
	assert.Equal(t, 1, env.stock(t, "var-b"))

	orders, total, err := env.service.List(ctx, domain.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)

	c, err := env.carts.Load(ctx, "cart-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2, "a rejected checkout keeps the cart")
}

func TestCheckout_ConcurrentLastUnit(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.carts.put("cart-1", "", map[string]int{"var-b": 1})
	env.carts.put("cart-2", "", map[string]int{"var-b": 1})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"cart-1", "cart-2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.service.Checkout(ctx, checkoutRequest(id))
		}()
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 0, env.stock(t, "var-b"))
}

func TestCheckout_ExpiredCoupon(t *testing.T) {
	env := setupTest(t)
	env.carts.put("cart-1", "EXPIRED5", map[string]int{"var-a": 1})

	_, err := env.service.Checkout(context.Background(), checkoutRequest("cart-1"))
	require.ErrorIs(t, err, domain.ErrCouponNoLongerValid)
	assert.ErrorIs(t, err, discountdomain.ErrExpired)
	assert.Equal(t, 5, env.stock(t, "var-a"))
}

func TestCheckout_Validation(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.carts.put("empty", "", nil)

	req := checkoutRequest("empty")
	_, err := env.service.Checkout(ctx, req)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "cart_id", ve.Field)

	req = checkoutRequest("cart-1")
	req.Contact.Email = "not-an-email"
	_, err = env.service.Checkout(ctx, req)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "contact.email", ve.Field)

	_, err = env.service.Checkout(ctx, checkoutRequest("missing"))
	assert.ErrorIs(t, err, cartdomain.ErrNotFound)
}

func TestCheckout_PaymentFailureKeepsOrder(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	env.carts.put("cart-1", "", map[string]int{"var-a": 1})
	env.gateway.FailNext("initiate", "provider timeout")

	res, err := env.service.Checkout(ctx, checkoutRequest("cart-1"))
	require.NoError(t, err)
	assert.Contains(t, res.PaymentError, "provider timeout")
	assert.Nil(t, res.Payment)

	o, err := env.service.Get(ctx, res.Order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Empty(t, o.PaymentReference)

	env.service.now = func() time.Time { return baseTime.Add(5 * time.Minute) }
	report, err := env.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Checked)

	o, err = env.service.Get(ctx, res.Order.OrderNumber)
	require.NoError(t, err)
	assert.NotEmpty(t, o.PaymentReference, "reconciler retries the initiation")
	assert.Equal(t, domain.StatusPending, o.Status)
}

func placeOrder(t *testing.T, env *testEnv, lines map[string]int) *domain.Order {
	t.Helper()
	env.carts.put("cart-x", "", lines)
	res, err := env.service.Checkout(context.Background(), checkoutRequest("cart-x"))
	require.NoError(t, err)
	return res.Order
}

func TestUpdateStatus_ShippedWithTracking(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	o := placeOrder(t, env, map[string]int{"var-a": 1})
	require.Equal(t, "WH-00001", o.OrderNumber)

	_, err := env.service.UpdateStatus(ctx, "WH-00001", StatusInput{Status: "processing", Actor: "admin@example.com"})
	require.NoError(t, err)
	_, err = env.service.UpdateStatus(ctx, "WH-00001", StatusInput{
		Status: "shipped", TrackingNumber: "TRK123", Carrier: "DHL", Notes: "left warehouse", Actor: "admin@example.com",
	})
	require.NoError(t, err)

	got, err := env.service.Get(ctx, "WH-00001")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipped, got.Status)
	assert.Equal(t, "TRK123", got.TrackingNumber)
	assert.Equal(t, "DHL", got.Carrier)
	assert.Len(t, got.History, 3)

	_, err = env.service.UpdateStatus(ctx, "WH-00001", StatusInput{Status: "cancelled"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = env.service.UpdateStatus(ctx, "WH-00001", StatusInput{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = env.service.UpdateStatus(ctx, "WH-09999", StatusInput{Status: "shipped"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_CancelRestoresStockOnce(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	o := placeOrder(t, env, map[string]int{"var-a": 2, "var-b": 1})
	assert.Equal(t, 3, env.stock(t, "var-a"))

	_, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "processing"})
	require.NoError(t, err)
	cancelled, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "cancelled", Notes: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, env.stock(t, "var-a"))
	assert.Equal(t, 1, env.stock(t, "var-b"))

	_, err = env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "cancelled", Notes: "again"})
	require.NoError(t, err)
	assert.Equal(t, 5, env.stock(t, "var-a"), "second cancel must not restore again")
	assert.Equal(t, 1, env.stock(t, "var-b"))

	restored, err := env.service.restoreStock(ctx, env.db, cancelled)
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestUpdateStatus_CancelRetriedAfterRestoreFailure(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	o := placeOrder(t, env, map[string]int{"var-a": 2})
	assert.Equal(t, 3, env.stock(t, "var-a"))

	var failRestore atomic.Bool
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").
		Register("test:fail_variant_update", func(tx *gorm.DB) {
			if failRestore.Load() && tx.Statement.Table == "variants" {
				tx.AddError(errors.New("database is locked"))
			}
		}))

	failRestore.Store(true)
	_, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "cancelled"})
	require.Error(t, err)

	got, err := env.service.Get(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status, "status write rolls back with the restore")
	assert.False(t, got.StockRestored)
	assert.Equal(t, 3, env.stock(t, "var-a"))

	failRestore.Store(false)
	cancelled, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.True(t, cancelled.StockRestored)
	assert.Equal(t, 5, env.stock(t, "var-a"))

	_, err = env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, 5, env.stock(t, "var-a"))
}

func TestPaymentWebhookAndRefund(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	o := placeOrder(t, env, map[string]int{"var-a": 1})

	_, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "refunded"})
	assert.ErrorIs(t, err, domain.ErrNotRefundable, "unpaid orders cannot be refunded")

	require.NoError(t, env.gateway.Settle(o.PaymentReference, payment.StatusPaid))
	paid, err := env.service.HandlePaymentNotification(ctx, PaymentNotification{Reference: o.PaymentReference, Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, paid.PaymentStatus, "status comes from the gateway, not the webhook body")
	assert.Equal(t, domain.StatusProcessing, paid.Status)
	assert.NotNil(t, paid.PaidAt)

	env.gateway.FailNext("refund", "acquirer unavailable")
	_, err = env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "refunded"})
	var pe *payment.ProviderError
	require.ErrorAs(t, err, &pe)

	still, err := env.service.Get(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, still.Status, "failed refund keeps the prior status")
	assert.Equal(t, 4, env.stock(t, "var-a"))

	refunded, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "refunded"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, refunded.Status)
	assert.Equal(t, domain.PaymentRefunded, refunded.PaymentStatus)
	assert.Equal(t, 5, env.stock(t, "var-a"), "unshipped goods return to stock on refund")
}

func TestUpdateStatus_RefundRetryAfterPaymentRefunded(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	o := placeOrder(t, env, map[string]int{"var-a": 1})
	require.NoError(t, env.gateway.Settle(o.PaymentReference, payment.StatusPaid))
	_, err := env.service.HandlePaymentNotification(ctx, PaymentNotification{Reference: o.PaymentReference})
	require.NoError(t, err)

	// Provider refunded and payment recorded, but the status write never landed.
	changed, err := domain.NewRepository(env.db).SetPaymentStatus(ctx, o.ID, domain.PaymentRefunded, baseTime)
	require.NoError(t, err)
	require.True(t, changed)

	env.gateway.FailNext("refund", "already refunded")
	refunded, err := env.service.UpdateStatus(ctx, o.OrderNumber, StatusInput{Status: "refunded"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, refunded.Status)
	assert.Equal(t, domain.PaymentRefunded, refunded.PaymentStatus)
	assert.Equal(t, 5, env.stock(t, "var-a"))
}

func TestReconcile_CancelsFailedAndExpired(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	failed := placeOrder(t, env, map[string]int{"var-a": 1})
	stale := placeOrder(t, env, map[string]int{"var-b": 1})
	require.NoError(t, env.gateway.Settle(failed.PaymentReference, payment.StatusFailed))

	env.service.now = func() time.Time { return baseTime.Add(10 * time.Minute) }
	report, err := env.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Cancelled)

	got, err := env.service.Get(ctx, failed.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 5, env.stock(t, "var-a"))

	got, err = env.service.Get(ctx, stale.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status, "not yet expired")

	env.service.now = func() time.Time { return baseTime.Add(2 * time.Hour) }
	report, err = env.service.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Cancelled)

	got, err = env.service.Get(ctx, stale.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 1, env.stock(t, "var-b"))
}

func TestTrack(t *testing.T) {
	env := setupTest(t)
	ctx := context.Background()
	o := placeOrder(t, env, map[string]int{"var-a": 1})

	got, err := env.service.Track(ctx, o.OrderNumber, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = env.service.Track(ctx, o.OrderNumber, "eve@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
