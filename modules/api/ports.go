package api

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	backupdomain "github.com/wighaven/storefront/domain/backup"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	discountdomain "github.com/wighaven/storefront/domain/discount"
	orderdomain "github.com/wighaven/storefront/domain/order"
	userdomain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/auth"
	"github.com/wighaven/storefront/modules/backup"
	"github.com/wighaven/storefront/modules/cart"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/discount"
	"github.com/wighaven/storefront/modules/order"
)

// CatalogPort is the catalog surface used by the handlers.
type CatalogPort interface {
	ListCategories(ctx context.Context, activeOnly bool) ([]catalogdomain.Category, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*catalogdomain.Category, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalogdomain.Category, error)
	UpdateCategory(ctx context.Context, id string, in catalog.CategoryInput) (*catalogdomain.Category, error)
	DeleteCategory(ctx context.Context, id, transferTo string) (int64, error)
	ListProducts(ctx context.Context, f catalogdomain.ProductFilter) (*catalog.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*catalogdomain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*catalogdomain.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalogdomain.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (*catalogdomain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	CreateVariant(ctx context.Context, productID string, in catalog.VariantInput) (*catalogdomain.Variant, error)
	UpdateVariant(ctx context.Context, id string, in catalog.VariantInput) (*catalogdomain.Variant, error)
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}

// DiscountPort is the discount administration surface.
type DiscountPort interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*discount.Validation, error)
	Create(ctx context.Context, in discount.Input) (*discountdomain.Discount, error)
	Update(ctx context.Context, id string, in discount.Input) (*discountdomain.Discount, error)
	Deactivate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*discountdomain.Discount, error)
	List(ctx context.Context, activeOnly bool) ([]discountdomain.Discount, error)
	Redemptions(ctx context.Context, id string) ([]discountdomain.Redemption, error)
}

// CartPort is the cart engine.
type CartPort interface {
	Create(ctx context.Context, userID string) (*cart.Snapshot, error)
	Get(ctx context.Context, id string) (*cart.Snapshot, error)
	AddItem(ctx context.Context, id, variantID string, quantity int) (*cart.Snapshot, error)
	UpdateQuantity(ctx context.Context, id, itemID string, quantity int) (*cart.Snapshot, error)
	RemoveItem(ctx context.Context, id, itemID string) (*cart.Snapshot, error)
	ApplyCoupon(ctx context.Context, id, code string) (*cart.Snapshot, error)
	RemoveCoupon(ctx context.Context, id string) (*cart.Snapshot, error)
	Delete(ctx context.Context, id string) error
}

// OrderPort is checkout and the order workflow.
type OrderPort interface {
	Checkout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutResult, error)
	Track(ctx context.Context, number, email string) (*orderdomain.Order, error)
	Get(ctx context.Context, number string) (*orderdomain.Order, error)
	List(ctx context.Context, f orderdomain.Filter) ([]orderdomain.Order, int64, error)
	UpdateStatus(ctx context.Context, number string, in order.StatusInput) (*orderdomain.Order, error)
	HandlePaymentNotification(ctx context.Context, n order.PaymentNotification) (*orderdomain.Order, error)
}

// AccountPort manages customer accounts and tokens.
type AccountPort interface {
	Register(ctx context.Context, in auth.RegisterInput) (*userdomain.User, error)
	Login(ctx context.Context, email, password string) (*userdomain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*userdomain.TokenPair, error)
	GetUser(ctx context.Context, userID string) (*userdomain.User, error)
}

// BackupPort triggers and lists backups.
type BackupPort interface {
	Trigger(ctx context.Context, trigger backupdomain.Trigger) (*backupdomain.Run, error)
	Runs() []backupdomain.Run
	Snapshots() ([]backup.ObjectInfo, error)
}

// RateLimiter builds per-scope limiting middleware.
type RateLimiter interface {
	Handler(scope string) fiber.Handler
}

// HealthChecker is any module reporting health.
type HealthChecker interface {
	Health(ctx context.Context) mono.HealthStatus
}

// Services are the ports the handlers call.
type Services struct {
	Catalog   CatalogPort
	Discounts DiscountPort
	Carts     CartPort
	Orders    OrderPort
	Accounts  AccountPort
	Backups   BackupPort
}

var (
	_ CatalogPort  = (*catalog.Service)(nil)
	_ DiscountPort = (*discount.Service)(nil)
	_ CartPort     = (*cart.Service)(nil)
	_ OrderPort    = (*order.Service)(nil)
	_ AccountPort  = (*auth.Service)(nil)
	_ BackupPort   = (*backup.Service)(nil)
)
