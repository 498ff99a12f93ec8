package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wighaven/storefront/modules/auth"
)

// Register creates a customer account.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var req auth.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}
	u, err := h.svc.Accounts.Register(c.UserContext(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toUserResponse(u))
}

// Login exchanges credentials for a token pair.
func (h *Handlers) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "Email and password are required")
	}
	pair, err := h.svc.Accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pair)
}

// Refresh exchanges a refresh token for a new pair.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return badRequest(c, "refresh_token is required")
	}
	pair, err := h.svc.Accounts.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(pair)
}

// Me returns the authenticated account.
func (h *Handlers) Me(c *fiber.Ctx) error {
	claims := claimsFrom(c)
	u, err := h.svc.Accounts.GetUser(c.UserContext(), claims.UserID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(toUserResponse(u))
}

// MyOrders lists the authenticated customer's orders.
func (h *Handlers) MyOrders(c *fiber.Ctx) error {
	filter := orderFilter(c)
	filter.Email = ""
	filter.UserID = claimsFrom(c).UserID
	orders, total, err := h.svc.Orders.List(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(OrderPage{Orders: orders, Total: total, Offset: filter.Offset, Limit: filter.Limit})
}
