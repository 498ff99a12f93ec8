package catalog

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CategoryType classifies how a category is presented in the storefront.
type CategoryType string

// Category types.
const (
	CategoryStandard   CategoryType = "standard"
	CategoryCollection CategoryType = "collection"
	CategoryLanding    CategoryType = "landing"
)

// Valid reports whether t is a known category type.
func (t CategoryType) Valid() bool {
	switch t {
	case CategoryStandard, CategoryCollection, CategoryLanding:
		return true
	}
	return false
}

// Category groups products. ProductCount is derived and never stored.
type Category struct {
	ID           string       `gorm:"primarykey;size:36" json:"id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Name         string       `gorm:"size:100;not null" json:"name"`
	Slug         string       `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Type         CategoryType `gorm:"size:20;not null" json:"type"`
	IsActive     bool         `gorm:"not null" json:"is_active"`
	IsFeatured   bool         `gorm:"not null" json:"is_featured"`
	ProductCount int64        `gorm:"-" json:"product_count"`
}

// TableName returns the table name for Category.
func (Category) TableName() string {
	return "categories"
}

// Product is a sellable item. Purchasable units are its Variants.
type Product struct {
	ID          string          `gorm:"primarykey;size:36" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
	Name        string          `gorm:"size:200;not null" json:"name"`
	Slug        string          `gorm:"size:220;uniqueIndex;not null" json:"slug"`
	Description string          `gorm:"size:4000" json:"description"`
	BasePrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"base_price"`
	CategoryID  string          `gorm:"size:36;index" json:"category_id"`
	Images      []string        `gorm:"serializer:json" json:"images"`
	IsActive    bool            `gorm:"not null" json:"is_active"`
	Variants    []Variant       `gorm:"foreignKey:ProductID" json:"variants,omitempty"`
}

// TableName returns the table name for Product.
func (Product) TableName() string {
	return "products"
}

// Variant is a specific purchasable SKU of a Product.
type Variant struct {
	ID        string          `gorm:"primarykey;size:36" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ProductID string          `gorm:"size:36;index;not null" json:"product_id"`
	SKU       string          `gorm:"size:64;uniqueIndex;not null" json:"sku"`
	Color     string          `gorm:"size:50" json:"color,omitempty"`
	Length    string          `gorm:"size:50" json:"length,omitempty"`
	Texture   string          `gorm:"size:50" json:"texture,omitempty"`
	Size      string          `gorm:"size:50" json:"size,omitempty"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock     int             `gorm:"not null;check:chk_variants_stock,stock >= 0" json:"stock"`
	Images    []string        `gorm:"serializer:json" json:"images"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
}

// TableName returns the table name for Variant.
func (Variant) TableName() string {
	return "variants"
}

// Label joins the variant's set attributes, e.g. "Black / 18in / Body Wave".
func (v Variant) Label() string {
	parts := make([]string, 0, 4)
	for _, a := range []string{v.Color, v.Length, v.Texture, v.Size} {
		if a != "" {
			parts = append(parts, a)
		}
	}
	return strings.Join(parts, " / ")
}

// Slugify lowercases s and replaces runs of non-alphanumerics with '-'.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
