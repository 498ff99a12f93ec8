package api

import (
	"errors"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	backupdomain "github.com/wighaven/storefront/domain/backup"
	cartdomain "github.com/wighaven/storefront/domain/cart"
	catalogdomain "github.com/wighaven/storefront/domain/catalog"
	discountdomain "github.com/wighaven/storefront/domain/discount"
	orderdomain "github.com/wighaven/storefront/domain/order"
	userdomain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/auth"
	"github.com/wighaven/storefront/modules/cart"
	"github.com/wighaven/storefront/modules/catalog"
	"github.com/wighaven/storefront/modules/discount"
	"github.com/wighaven/storefront/modules/payment"
	"github.com/wighaven/storefront/modules/worker"
)

// Error codes returned in ErrorResponse.Error.
const (
	CodeBadRequest           = "bad_request"
	CodeValidation           = "validation_error"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeNotFound             = "not_found"
	CodeConflict             = "conflict"
	CodeInsufficientStock    = "insufficient_stock"
	CodeInvalidTransition    = "invalid_transition"
	CodeCouponNoLongerValid  = "coupon_no_longer_valid"
	CodeCouponInvalid        = "coupon_invalid"
	CodeVariantUnavailable   = "variant_unavailable"
	CodePaymentProviderError = "payment_provider_error"
	CodeUnavailable          = "service_unavailable"
	CodeInternal             = "internal_error"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{catalog.ErrInvalidInput, fiber.StatusBadRequest, CodeValidation},
	{discount.ErrInvalidInput, fiber.StatusBadRequest, CodeValidation},
	{cartdomain.ErrInvalidQuantity, fiber.StatusBadRequest, CodeValidation},
	{auth.ErrInvalidEmail, fiber.StatusBadRequest, CodeValidation},
	{auth.ErrWeakPassword, fiber.StatusBadRequest, CodeValidation},
	{auth.ErrPasswordTooLong, fiber.StatusBadRequest, CodeValidation},
	{orderdomain.ErrInvalidStatus, fiber.StatusBadRequest, CodeValidation},
	{catalogdomain.ErrInvalidTransfer, fiber.StatusBadRequest, CodeValidation},
	{catalogdomain.ErrNegativeStock, fiber.StatusBadRequest, CodeValidation},
	{payment.ErrInvalidRequest, fiber.StatusBadRequest, CodeValidation},

	{auth.ErrInvalidCredentials, fiber.StatusUnauthorized, CodeUnauthorized},
	{auth.ErrExpiredToken, fiber.StatusUnauthorized, CodeUnauthorized},
	{auth.ErrInvalidToken, fiber.StatusUnauthorized, CodeUnauthorized},

	{orderdomain.ErrNotFound, fiber.StatusNotFound, CodeNotFound},
	{cartdomain.ErrNotFound, fiber.StatusNotFound, CodeNotFound},
	{cartdomain.ErrItemNotFound, fiber.StatusNotFound, CodeNotFound},
	{catalogdomain.ErrCategoryNotFound, fiber.StatusNotFound, CodeNotFound},
	{catalogdomain.ErrProductNotFound, fiber.StatusNotFound, CodeNotFound},
	{catalogdomain.ErrVariantNotFound, fiber.StatusNotFound, CodeNotFound},
	{discountdomain.ErrNotFound, fiber.StatusNotFound, CodeNotFound},
	{userdomain.ErrNotFound, fiber.StatusNotFound, CodeNotFound},
	{backupdomain.ErrRunNotFound, fiber.StatusNotFound, CodeNotFound},
	{payment.ErrUnknownReference, fiber.StatusNotFound, CodeNotFound},

	{orderdomain.ErrCouponNoLongerValid, fiber.StatusConflict, CodeCouponNoLongerValid},
	{orderdomain.ErrConcurrentUpdate, fiber.StatusConflict, CodeConflict},
	{orderdomain.ErrNotRefundable, fiber.StatusConflict, CodeConflict},
	{cartdomain.ErrEmpty, fiber.StatusConflict, CodeConflict},
	{cart.ErrConflict, fiber.StatusConflict, CodeConflict},
	{catalogdomain.ErrExists, fiber.StatusConflict, CodeConflict},
	{catalogdomain.ErrCategoryInUse, fiber.StatusConflict, CodeConflict},
	{discountdomain.ErrExists, fiber.StatusConflict, CodeConflict},
	{userdomain.ErrExists, fiber.StatusConflict, CodeConflict},
	{backupdomain.ErrRunning, fiber.StatusConflict, CodeConflict},

	{discountdomain.ErrExpired, fiber.StatusUnprocessableEntity, CodeCouponInvalid},
	{discountdomain.ErrNotYetActive, fiber.StatusUnprocessableEntity, CodeCouponInvalid},
	{discountdomain.ErrUsageExceeded, fiber.StatusUnprocessableEntity, CodeCouponInvalid},
	{discountdomain.ErrInactive, fiber.StatusUnprocessableEntity, CodeCouponInvalid},
	{discountdomain.ErrMinimumNotMet, fiber.StatusUnprocessableEntity, CodeCouponInvalid},
	{cart.ErrVariantUnavailable, fiber.StatusUnprocessableEntity, CodeVariantUnavailable},

	{worker.ErrQueueFull, fiber.StatusServiceUnavailable, CodeUnavailable},
	{worker.ErrNotRunning, fiber.StatusServiceUnavailable, CodeUnavailable},
}

// writeError renders err as an ErrorResponse with the matching status.
// Structured errors carry their payload in Details. Anything unmapped is
// logged and reported as a 500 without leaking the message.
func writeError(c *fiber.Ctx, logger types.Logger, err error) error {
	var (
		stockErr      *orderdomain.InsufficientStockError
		transitionErr *orderdomain.TransitionError
		validationErr *orderdomain.ValidationError
		couponErr     *orderdomain.CouponNoLongerValidError
		providerErr   *payment.ProviderError
	)
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   CodeValidation,
			Message: validationErr.Error(),
			Details: fiber.Map{"field": validationErr.Field},
		})
	case errors.As(err, &stockErr):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   CodeInsufficientStock,
			Message: "Some items are no longer available in the requested quantity",
			Details: fiber.Map{"lines": stockErr.Lines},
		})
	case errors.As(err, &transitionErr):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   CodeInvalidTransition,
			Message: transitionErr.Error(),
			Details: fiber.Map{"from": transitionErr.From, "to": transitionErr.To},
		})
	case errors.As(err, &couponErr):
		details := fiber.Map{"code": couponErr.Code}
		if couponErr.Reason != nil {
			details["reason"] = couponErr.Reason.Error()
		}
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   CodeCouponNoLongerValid,
			Message: couponErr.Error(),
			Details: details,
		})
	case errors.As(err, &providerErr):
		logger.Warn("Payment provider failure", "op", providerErr.Op, "status", providerErr.StatusCode, "error", providerErr.Message)
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Error:   CodePaymentProviderError,
			Message: "The payment provider could not process the request",
		})
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return c.Status(m.status).JSON(ErrorResponse{Error: m.code, Message: err.Error()})
		}
	}

	logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   CodeInternal,
		Message: "Internal server error",
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: CodeBadRequest, Message: message})
}

// errorHandler handles errors that escape route handlers.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(ErrorResponse{Error: codeFor(code), Message: message})
}

func codeFor(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return CodeBadRequest
	case fiber.StatusUnauthorized:
		return CodeUnauthorized
	case fiber.StatusForbidden:
		return CodeForbidden
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	}
	return CodeInternal
}
