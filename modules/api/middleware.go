package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	userdomain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/auth"
)

// ClaimsKey is the Locals key holding the caller's *userdomain.Claims.
const ClaimsKey = "claims"

// bearerToken extracts a token from "Authorization: Bearer <t>" or the
// x-auth-token header. The token is empty when neither is present; the second
// value is set when the Authorization header is malformed.
func bearerToken(c *fiber.Ctx) (string, string) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", "Invalid authorization header format. Use: Bearer <token>"
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			return "", "Token is required"
		}
		return token, ""
	}
	return strings.TrimSpace(c.Get("x-auth-token")), ""
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   CodeUnauthorized,
		Message: message,
	})
}

// AuthMiddleware rejects requests without a valid access token.
func AuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, problem := bearerToken(c)
		if problem != "" {
			return unauthorized(c, problem)
		}
		if token == "" {
			return unauthorized(c, "Authorization header is required")
		}
		claims, err := authPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}
		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// OptionalAuthMiddleware attaches claims when a token is supplied. Guests
// pass through; a token that fails validation is still rejected.
func OptionalAuthMiddleware(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, problem := bearerToken(c)
		if problem != "" {
			return unauthorized(c, problem)
		}
		if token == "" {
			return c.Next()
		}
		claims, err := authPort.ValidateToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}
		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// AdminMiddleware requires the authenticated caller to hold the admin role.
// It must run after AuthMiddleware.
func AdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := claimsFrom(c)
		if claims == nil || claims.Role != userdomain.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{
				Error:   CodeForbidden,
				Message: "Admin access required",
			})
		}
		return c.Next()
	}
}

func claimsFrom(c *fiber.Ctx) *userdomain.Claims {
	claims, _ := c.Locals(ClaimsKey).(*userdomain.Claims)
	return claims
}
