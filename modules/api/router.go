package api

import (
	"sort"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/wighaven/storefront/modules/auth"
)

// RouterConfig collects everything the HTTP app needs.
type RouterConfig struct {
	Services Services
	Auth     auth.AuthPort
	// Limiter may be nil, in which case no route is rate limited.
	Limiter RateLimiter
	Health  map[string]HealthChecker
	// AccessLog enables the request logger middleware.
	AccessLog bool
	// Timeout bounds reading a request and writing its response. Idle
	// keep-alive connections close after four times this.
	Timeout time.Duration
	Logger  types.Logger
}

// DefaultTimeout is the request timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

type passThrough struct{}

func (passThrough) Handler(string) fiber.Handler {
	return func(c *fiber.Ctx) error { return c.Next() }
}

// NewApp builds the Fiber app with every storefront route mounted.
func NewApp(cfg RouterConfig) *fiber.App {
	if cfg.Limiter == nil {
		cfg.Limiter = passThrough{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	app := fiber.New(fiber.Config{
		AppName:               "WigHaven Storefront",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
		ReadTimeout:           cfg.Timeout,
		WriteTimeout:          cfg.Timeout,
		IdleTimeout:           4 * cfg.Timeout,
	})
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New())

	h := NewHandlers(cfg.Services, cfg.Logger)
	requireAuth := AuthMiddleware(cfg.Auth)
	optionalAuth := OptionalAuthMiddleware(cfg.Auth)
	limit := cfg.Limiter.Handler

	app.Get("/health", healthHandler(cfg.Health))
	app.Get("/gateway-health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/categories", h.ListCategories)
	v1.Get("/categories/:slug", h.GetCategory)
	v1.Get("/products", h.ListProducts)
	v1.Get("/products/slug/:slug", h.GetProductBySlug)
	v1.Get("/products/:id", h.GetProduct)

	carts := v1.Group("/carts")
	carts.Post("/", optionalAuth, h.CreateCart)
	carts.Get("/:id", h.GetCart)
	carts.Delete("/:id", h.DeleteCart)
	carts.Post("/:id/items", h.AddCartItem)
	carts.Patch("/:id/items/:itemId", h.UpdateCartItem)
	carts.Delete("/:id/items/:itemId", h.RemoveCartItem)
	carts.Post("/:id/coupon", limit("coupon"), h.ApplyCoupon)
	carts.Delete("/:id/coupon", h.RemoveCoupon)

	v1.Post("/checkout", limit("checkout"), optionalAuth, h.Checkout)
	v1.Get("/orders/track/:number", h.TrackOrder)
	v1.Post("/payments/webhook", h.PaymentWebhook)

	authRoutes := v1.Group("/auth")
	authRoutes.Post("/register", limit("auth"), h.Register)
	authRoutes.Post("/login", limit("auth"), h.Login)
	authRoutes.Post("/refresh", limit("auth"), h.Refresh)
	authRoutes.Get("/me", requireAuth, h.Me)
	v1.Get("/me/orders", requireAuth, h.MyOrders)

	admin := v1.Group("/admin", requireAuth, AdminMiddleware())

	admin.Get("/categories", h.AdminListCategories)
	admin.Post("/categories", h.AdminCreateCategory)
	admin.Patch("/categories/:id", h.AdminUpdateCategory)
	admin.Delete("/categories/:id", h.AdminDeleteCategory)

	admin.Get("/products", h.AdminListProducts)
	admin.Post("/products", h.AdminCreateProduct)
	admin.Get("/products/:id", h.AdminGetProduct)
	admin.Patch("/products/:id", h.AdminUpdateProduct)
	admin.Delete("/products/:id", h.AdminDeleteProduct)
	admin.Post("/products/:id/variants", h.AdminCreateVariant)
	admin.Patch("/variants/:id", h.AdminUpdateVariant)
	admin.Post("/variants/:id/stock", h.AdminAdjustStock)

	admin.Get("/discounts", h.AdminListDiscounts)
	admin.Post("/discounts", h.AdminCreateDiscount)
	admin.Get("/discounts/:id", h.AdminGetDiscount)
	admin.Patch("/discounts/:id", h.AdminUpdateDiscount)
	admin.Delete("/discounts/:id", h.AdminDeactivateDiscount)

	admin.Get("/orders", h.AdminListOrders)
	admin.Get("/orders/:number", h.AdminGetOrder)
	admin.Patch("/orders/:number/status", h.AdminUpdateOrderStatus)

	admin.Post("/backups", h.AdminTriggerBackup)
	admin.Get("/backups", h.AdminListBackups)

	return app
}

// healthHandler aggregates module health. Any unhealthy module turns the
// response into a 503.
func healthHandler(checks map[string]HealthChecker) fiber.Handler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		resp := HealthResponse{Status: "healthy", Modules: make(map[string]ModuleHealth, len(names))}
		for _, name := range names {
			st := checks[name].Health(c.UserContext())
			resp.Modules[name] = ModuleHealth{Healthy: st.Healthy, Message: st.Message, Details: st.Details}
			if !st.Healthy {
				resp.Status = "unhealthy"
			}
		}
		if resp.Status != "healthy" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
		}
		return c.JSON(resp)
	}
}
