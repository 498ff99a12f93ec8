package api

import (
	"strings"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	orderdomain "github.com/wighaven/storefront/domain/order"
	"github.com/wighaven/storefront/modules/order"
)

// Handlers contains the HTTP handlers for the storefront API.
type Handlers struct {
	svc    Services
	logger types.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc Services, logger types.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	return writeError(c, h.logger, err)
}

// ListCategories returns the active categories.
func (h *Handlers) ListCategories(c *fiber.Ctx) error {
	categories, err := h.svc.Catalog.ListCategories(c.UserContext(), true)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// GetCategory returns an active category by slug.
func (h *Handlers) GetCategory(c *fiber.Ctx) error {
	category, err := h.svc.Catalog.GetCategoryBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return h.fail(c, err)
	}
	if !category.IsActive {
		return h.fail(c, catalogdomain.ErrCategoryNotFound)
	}
	return c.JSON(category)
}

// ListProducts returns one page of active products. The category may be
// given by id or by slug.
func (h *Handlers) ListProducts(c *fiber.Ctx) error {
	filter := catalogdomain.ProductFilter{
		CategoryID: c.Query("category_id"),
		Search:     strings.TrimSpace(c.Query("q")),
		ActiveOnly: true,
		Offset:     max(c.QueryInt("offset"), 0),
		Limit:      c.QueryInt("limit", 20),
	}
	if slug := c.Query("category"); slug != "" && filter.CategoryID == "" {
		category, err := h.svc.Catalog.GetCategoryBySlug(c.UserContext(), slug)
		if err != nil {
			return h.fail(c, err)
		}
		filter.CategoryID = category.ID
	}
	page, err := h.svc.Catalog.ListProducts(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(page)
}

// GetProduct returns an active product by id.
func (h *Handlers) GetProduct(c *fiber.Ctx) error {
	product, err := h.svc.Catalog.GetProduct(c.UserContext(), c.Params("id"))
	return h.publicProduct(c, product, err)
}

// GetProductBySlug returns an active product by slug.
func (h *Handlers) GetProductBySlug(c *fiber.Ctx) error {
	product, err := h.svc.Catalog.GetProductBySlug(c.UserContext(), c.Params("slug"))
	return h.publicProduct(c, product, err)
}

func (h *Handlers) publicProduct(c *fiber.Ctx, product *catalogdomain.Product, err error) error {
	if err != nil {
		return h.fail(c, err)
	}
	if !product.IsActive {
		return h.fail(c, catalogdomain.ErrProductNotFound)
	}
	return c.JSON(product)
}

// CreateCart starts a cart, owned by the caller when a token was supplied.
func (h *Handlers) CreateCart(c *fiber.Ctx) error {
	var userID string
	if claims := claimsFrom(c); claims != nil {
		userID = claims.UserID
	}
	snap, err := h.svc.Carts.Create(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(snap)
}

// GetCart returns the recomputed cart.
func (h *Handlers) GetCart(c *fiber.Ctx) error {
	snap, err := h.svc.Carts.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

// AddCartItem adds a variant or increases its quantity.
func (h *Handlers) AddCartItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.VariantID == "" {
		return badRequest(c, "variant_id is required")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	snap, err := h.svc.Carts.AddItem(c.UserContext(), c.Params("id"), req.VariantID, req.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

// UpdateCartItem sets a line quantity.
func (h *Handlers) UpdateCartItem(c *fiber.Ctx) error {
	var req UpdateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	snap, err := h.svc.Carts.UpdateQuantity(c.UserContext(), c.Params("id"), c.Params("itemId"), req.Quantity)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

// RemoveCartItem removes a line.
func (h *Handlers) RemoveCartItem(c *fiber.Ctx) error {
	snap, err := h.svc.Carts.RemoveItem(c.UserContext(), c.Params("id"), c.Params("itemId"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

// ApplyCoupon attaches a coupon code after validating it.
func (h *Handlers) ApplyCoupon(c *fiber.Ctx) error {
	var req CouponRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.Code) == "" {
		return badRequest(c, "code is required")
	}
	snap, err := h.svc.Carts.ApplyCoupon(c.UserContext(), c.Params("id"), req.Code)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

// RemoveCoupon detaches the cart's coupon.
func (h *Handlers) RemoveCoupon(c *fiber.Ctx) error {
	snap, err := h.svc.Carts.RemoveCoupon(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(snap)
}

// DeleteCart discards a cart.
func (h *Handlers) DeleteCart(c *fiber.Ctx) error {
	if err := h.svc.Carts.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Checkout turns a cart into an order. The order is created even when
// payment initiation fails; the result then carries PaymentError.
func (h *Handlers) Checkout(c *fiber.Ctx) error {
	var req order.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if claims := claimsFrom(c); claims != nil {
		req.UserID = claims.UserID
	}
	result, err := h.svc.Orders.Checkout(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// TrackOrder looks an order up by number and contact email.
func (h *Handlers) TrackOrder(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		return badRequest(c, "email is required")
	}
	o, err := h.svc.Orders.Track(c.UserContext(), c.Params("number"), email)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(o)
}

// PaymentWebhook accepts a provider notification. The claimed status is
// verified with the gateway before the order changes.
func (h *Handlers) PaymentWebhook(c *fiber.Ctx) error {
	var n order.PaymentNotification
	if err := c.BodyParser(&n); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if n.Reference == "" {
		return badRequest(c, "reference is required")
	}
	o, err := h.svc.Orders.HandlePaymentNotification(c.UserContext(), n)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"order_number":   o.OrderNumber,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
	})
}

func orderFilter(c *fiber.Ctx) orderdomain.Filter {
	return orderdomain.Filter{
		Status:        orderdomain.Status(c.Query("status")),
		PaymentStatus: orderdomain.PaymentStatus(c.Query("payment_status")),
		Email:         strings.ToLower(strings.TrimSpace(c.Query("email"))),
		Offset:        max(c.QueryInt("offset"), 0),
		Limit:         c.QueryInt("limit", 20),
	}
}
