package api

import (
	"github.com/gofiber/fiber/v2"
	backupdomain "github.com/wighaven/storefront/domain/backup"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/discount"
	"github.com/wighaven/storefront/modules/order"
)

// AdminListCategories returns every category, active or not.
func (h *Handlers) AdminListCategories(c *fiber.Ctx) error {
	categories, err := h.svc.Catalog.ListCategories(c.UserContext(), false)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (h *Handlers) AdminCreateCategory(c *fiber.Ctx) error {
	var in catalog.CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	category, err := h.svc.Catalog.CreateCategory(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

func (h *Handlers) AdminUpdateCategory(c *fiber.Ctx) error {
	var in catalog.CategoryInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	category, err := h.svc.Catalog.UpdateCategory(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(category)
}

// AdminDeleteCategory removes a category. Products in it must be moved with
// ?transferTo=<category id> first, or the delete is refused.
func (h *Handlers) AdminDeleteCategory(c *fiber.Ctx) error {
	id := c.Params("id")
	moved, err := h.svc.Catalog.DeleteCategory(c.UserContext(), id, c.Query("transferTo"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(CategoryDeleteResponse{Deleted: id, ProductsMoved: moved})
}

// AdminListProducts includes inactive products.
func (h *Handlers) AdminListProducts(c *fiber.Ctx) error {
	page, err := h.svc.Catalog.ListProducts(c.UserContext(), catalogdomain.ProductFilter{
		CategoryID: c.Query("category_id"),
		Search:     c.Query("q"),
		Offset:     max(c.QueryInt("offset"), 0),
		Limit:      c.QueryInt("limit", 20),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(page)
}

func (h *Handlers) AdminGetProduct(c *fiber.Ctx) error {
	product, err := h.svc.Catalog.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(product)
}

func (h *Handlers) AdminCreateProduct(c *fiber.Ctx) error {
	var in catalog.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	product, err := h.svc.Catalog.CreateProduct(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *Handlers) AdminUpdateProduct(c *fiber.Ctx) error {
	var in catalog.ProductInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	product, err := h.svc.Catalog.UpdateProduct(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(product)
}

func (h *Handlers) AdminDeleteProduct(c *fiber.Ctx) error {
	if err := h.svc.Catalog.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) AdminCreateVariant(c *fiber.Ctx) error {
	var in catalog.VariantInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	variant, err := h.svc.Catalog.CreateVariant(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(variant)
}

func (h *Handlers) AdminUpdateVariant(c *fiber.Ctx) error {
	var in catalog.VariantInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	variant, err := h.svc.Catalog.UpdateVariant(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(variant)
}

// AdminAdjustStock applies a signed delta to a variant's stock.
func (h *Handlers) AdminAdjustStock(c *fiber.Ctx) error {
	var req StockRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	id := c.Params("id")
	stock, err := h.svc.Catalog.AdjustStock(c.UserContext(), id, req.Delta)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(StockResponse{VariantID: id, Stock: stock})
}

func (h *Handlers) AdminListDiscounts(c *fiber.Ctx) error {
	discounts, err := h.svc.Discounts.List(c.UserContext(), c.QueryBool("active"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"discounts": discounts})
}

// AdminGetDiscount returns a discount with its redemption history.
func (h *Handlers) AdminGetDiscount(c *fiber.Ctx) error {
	ctx := c.UserContext()
	d, err := h.svc.Discounts.Get(ctx, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	redemptions, err := h.svc.Discounts.Redemptions(ctx, d.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"discount": d, "redemptions": redemptions})
}

func (h *Handlers) AdminCreateDiscount(c *fiber.Ctx) error {
	var in discount.Input
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	d, err := h.svc.Discounts.Create(c.UserContext(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(d)
}

func (h *Handlers) AdminUpdateDiscount(c *fiber.Ctx) error {
	var in discount.Input
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	d, err := h.svc.Discounts.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(d)
}

// AdminDeactivateDiscount switches a code off. Redemption history is kept.
func (h *Handlers) AdminDeactivateDiscount(c *fiber.Ctx) error {
	if err := h.svc.Discounts.Deactivate(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handlers) AdminListOrders(c *fiber.Ctx) error {
	filter := orderFilter(c)
	filter.UserID = c.Query("user_id")
	orders, total, err := h.svc.Orders.List(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(OrderPage{Orders: orders, Total: total, Offset: filter.Offset, Limit: filter.Limit})
}

func (h *Handlers) AdminGetOrder(c *fiber.Ctx) error {
	o, err := h.svc.Orders.Get(c.UserContext(), c.Params("number"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(o)
}

// AdminUpdateOrderStatus moves an order through the workflow. The acting
// admin's email is recorded in the history.
func (h *Handlers) AdminUpdateOrderStatus(c *fiber.Ctx) error {
	var in order.StatusInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if in.Status == "" {
		return badRequest(c, "status is required")
	}
	if claims := claimsFrom(c); claims != nil {
		in.Actor = claims.Email
	}
	o, err := h.svc.Orders.UpdateStatus(c.UserContext(), c.Params("number"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(o)
}

// AdminTriggerBackup starts a backup in the background.
func (h *Handlers) AdminTriggerBackup(c *fiber.Ctx) error {
	run, err := h.svc.Backups.Trigger(c.UserContext(), backupdomain.TriggerManual)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *Handlers) AdminListBackups(c *fiber.Ctx) error {
	snapshots, err := h.svc.Backups.Snapshots()
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(BackupListResponse{Runs: h.svc.Backups.Runs(), Snapshots: snapshots})
}
