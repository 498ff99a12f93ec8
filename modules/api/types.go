package api

import (
	"time"

	backupdomain "github.com/wighaven/storefront/domain/backup"
	orderdomain "github.com/wighaven/storefront/domain/order"
	userdomain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/backup"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// AddItemRequest adds a variant to a cart.
type AddItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateItemRequest sets a line quantity.
type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

// CouponRequest applies a coupon code.
type CouponRequest struct {
	Code string `json:"code"`
}

// StockRequest adjusts a variant's inventory by Delta.
type StockRequest struct {
	Delta int `json:"delta"`
}

// StockResponse reports the stock after an adjustment.
type StockResponse struct {
	VariantID string `json:"variant_id"`
	Stock     int    `json:"stock"`
}

// LoginRequest is a login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest exchanges a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name,omitempty"`
	Role      userdomain.Role `json:"role"`
	CreatedAt time.Time       `json:"created_at"`
}

func toUserResponse(u *userdomain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

// OrderPage is one page of orders.
type OrderPage struct {
	Orders []orderdomain.Order `json:"orders"`
	Total  int64               `json:"total"`
	Offset int                 `json:"offset"`
	Limit  int                 `json:"limit"`
}

// CategoryDeleteResponse reports how many products moved.
type CategoryDeleteResponse struct {
	Deleted       string `json:"deleted"`
	ProductsMoved int64  `json:"products_moved"`
}

// BackupListResponse lists runs and stored snapshots.
type BackupListResponse struct {
	Runs      []backupdomain.Run  `json:"runs"`
	Snapshots []backup.ObjectInfo `json:"snapshots"`
}

// HealthResponse aggregates module health.
type HealthResponse struct {
	Status  string                  `json:"status"`
	Modules map[string]ModuleHealth `json:"modules"`
}

// ModuleHealth is one module's health entry.
type ModuleHealth struct {
	Healthy bool           `json:"healthy"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
