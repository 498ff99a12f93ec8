package catalog

import (
	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/catalog"
)

// CategoryInput creates or updates a category. Nil fields are left unchanged
// on update.
type CategoryInput struct {
	Name       *string              `json:"name,omitempty"`
	Slug       *string              `json:"slug,omitempty"`
	Type       *domain.CategoryType `json:"type,omitempty"`
	IsActive   *bool                `json:"is_active,omitempty"`
	IsFeatured *bool                `json:"is_featured,omitempty"`
}

// ProductInput creates or updates a product.
type ProductInput struct {
	Name        *string          `json:"name,omitempty"`
	Slug        *string          `json:"slug,omitempty"`
	Description *string          `json:"description,omitempty"`
	BasePrice   *decimal.Decimal `json:"base_price,omitempty"`
	CategoryID  *string          `json:"category_id,omitempty"`
	Images      []string         `json:"images,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
	Variants    []VariantInput   `json:"variants,omitempty"`
}

// VariantInput creates or updates a variant. Stock is only honoured on create.
type VariantInput struct {
	SKU      *string          `json:"sku,omitempty"`
	Color    *string          `json:"color,omitempty"`
	Length   *string          `json:"length,omitempty"`
	Texture  *string          `json:"texture,omitempty"`
	Size     *string          `json:"size,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Stock    *int             `json:"stock,omitempty"`
	Images   []string         `json:"images,omitempty"`
	IsActive *bool            `json:"is_active,omitempty"`
}

// ProductPage is one page of a product listing.
type ProductPage struct {
	Products []domain.Product `json:"products"`
	Total    int64            `json:"total"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
}

// VariantInfo is the authoritative view of a variant used by the cart: live
// price and stock joined with the owning product's display fields.
type VariantInfo struct {
	VariantID   string          `json:"variant_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Label       string          `json:"label"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Images      []string        `json:"images"`
	Available   bool            `json:"available"`
}

// GetVariantRequest is the request for services.catalog.get-variant.
type GetVariantRequest struct {
	IDs []string `json:"ids"`
}

// GetVariantResponse carries the variants that were found.
type GetVariantResponse struct {
	Variants map[string]VariantInfo `json:"variants"`
	Error    string                 `json:"error,omitempty"`
}

// GetProductRequest is the request for services.catalog.get-product.
// Either ID or Slug must be set.
type GetProductRequest struct {
	ID   string `json:"id,omitempty"`
	Slug string `json:"slug,omitempty"`
}

// GetProductResponse wraps a product lookup.
type GetProductResponse struct {
	Product *domain.Product `json:"product,omitempty"`
	Error   string          `json:"error,omitempty"`
}
