package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ProductFilter narrows ListProducts results.
type ProductFilter struct {
	CategoryID string
	Search     string
	ActiveOnly bool
	Offset     int
	Limit      int
}

// Repository provides database operations for categories, products and variants.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new catalog repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Migrate creates or updates the catalog tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Category{}, &Product{}, &Variant{})
}

func translate(err error, notFound error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrExists
	}
	return err
}

// CreateCategory inserts a category.
func (r *Repository) CreateCategory(ctx context.Context, c *Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", translate(err, ErrCategoryNotFound))
	}
	return nil
}

// UpdateCategory saves all fields of c.
func (r *Repository) UpdateCategory(ctx context.Context, c *Category) error {
	result := r.db.WithContext(ctx).Model(&Category{}).Where("id = ?", c.ID).
		Select("name", "slug", "type", "is_active", "is_featured").Updates(c)
	if result.Error != nil {
		return fmt.Errorf("failed to update category: %w", translate(result.Error, ErrCategoryNotFound))
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// GetCategory retrieves a category by ID with its product count.
func (r *Repository) GetCategory(ctx context.Context, id string) (*Category, error) {
	return r.findCategory(ctx, "id = ?", id)
}

// GetCategoryBySlug retrieves a category by slug with its product count.
func (r *Repository) GetCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	return r.findCategory(ctx, "slug = ?", slug)
}

func (r *Repository) findCategory(ctx context.Context, query string, arg any) (*Category, error) {
	var c Category
	if err := r.db.WithContext(ctx).Where(query, arg).First(&c).Error; err != nil {
		return nil, translate(err, ErrCategoryNotFound)
	}
	count, err := r.CountProducts(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.ProductCount = count
	return &c, nil
}

// ListCategories returns categories ordered by name with derived product counts.
func (r *Repository) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	var categories []Category
	q := r.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	type row struct {
		CategoryID string
		Count      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&Product{}).
		Select("category_id, COUNT(*) AS count").
		Group("category_id").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.CategoryID] = rw.Count
	}
	for i := range categories {
		categories[i].ProductCount = counts[categories[i].ID]
	}
	return categories, nil
}

// CountProducts returns the number of live products in a category.
func (r *Repository) CountProducts(ctx context.Context, categoryID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Product{}).
		Where("category_id = ?", categoryID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// DeleteCategory removes a category. If it still has products they are moved
// to transferTo first; an empty transferTo with products present fails with
// ErrCategoryInUse. Returns the number of products moved.
func (r *Repository) DeleteCategory(ctx context.Context, id, transferTo string) (int64, error) {
	if transferTo == id && id != "" {
		return 0, ErrInvalidTransfer
	}

	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Category
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return translate(err, ErrCategoryNotFound)
		}

		var count int64
		if err := tx.Unscoped().Model(&Product{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count products: %w", err)
		}

		if count > 0 {
			if transferTo == "" {
				return ErrCategoryInUse
			}
			var target Category
			if err := tx.First(&target, "id = ?", transferTo).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: target %s not found", ErrInvalidTransfer, transferTo)
				}
				return err
			}
			result := tx.Unscoped().Model(&Product{}).Where("category_id = ?", id).
				UpdateColumn("category_id", transferTo)
			if result.Error != nil {
				return fmt.Errorf("failed to transfer products: %w", result.Error)
			}
			moved = result.RowsAffected
		}

		if err := tx.Delete(&Category{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete category: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// CreateProduct inserts a product together with its variants.
func (r *Repository) CreateProduct(ctx context.Context, p *Product) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create product: %w", translate(err, ErrProductNotFound))
	}
	return nil
}

// UpdateProduct saves the product's own fields; variants are updated separately.
func (r *Repository) UpdateProduct(ctx context.Context, p *Product) error {
	result := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", p.ID).
		Select("name", "slug", "description", "base_price", "category_id", "images", "is_active").
		Updates(p)
	if result.Error != nil {
		return fmt.Errorf("failed to update product: %w", translate(result.Error, ErrProductNotFound))
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct soft-deletes a product; historical orders keep their snapshots.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Product{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct retrieves a product with its variants.
func (r *Repository) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := r.db.WithContext(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("sku ASC")
	}).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err, ErrProductNotFound)
	}
	return &p, nil
}

// GetProductBySlug retrieves a product with its variants by slug.
func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var p Product
	if err := r.db.WithContext(ctx).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("sku ASC")
	}).First(&p, "slug = ?", slug).Error; err != nil {
		return nil, translate(err, ErrProductNotFound)
	}
	return &p, nil
}

// ListProducts returns a page of products (with variants) and the total match count.
func (r *Repository) ListProducts(ctx context.Context, f ProductFilter) ([]Product, int64, error) {
	filter := func(db *gorm.DB) *gorm.DB {
		if f.CategoryID != "" {
			db = db.Where("category_id = ?", f.CategoryID)
		}
		if f.ActiveOnly {
			db = db.Where("is_active = ?", true)
		}
		if s := strings.TrimSpace(f.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			db = db.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&Product{}).Scopes(filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	q := r.db.WithContext(ctx).Scopes(filter).Preload("Variants", func(db *gorm.DB) *gorm.DB {
		return db.Order("sku ASC")
	}).Order("created_at DESC, id ASC")
	if f.Limit > 0 {
		q = q.Offset(f.Offset).Limit(f.Limit)
	}
	if err := q.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// CreateVariant inserts a variant for an existing product.
func (r *Repository) CreateVariant(ctx context.Context, v *Variant) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", v.ProductID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if count == 0 {
		return ErrProductNotFound
	}
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("failed to create variant: %w", translate(err, ErrVariantNotFound))
	}
	return nil
}

// UpdateVariant saves the variant's descriptive fields and price. Stock is
// changed only through AdjustStock, SetStock and the order stock operations.
func (r *Repository) UpdateVariant(ctx context.Context, v *Variant) error {
	result := r.db.WithContext(ctx).Model(&Variant{}).Where("id = ?", v.ID).
		Select("sku", "color", "length", "texture", "size", "price", "images", "is_active").
		Updates(v)
	if result.Error != nil {
		return fmt.Errorf("failed to update variant: %w", translate(result.Error, ErrVariantNotFound))
	}
	if result.RowsAffected == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// GetVariant retrieves a single variant.
func (r *Repository) GetVariant(ctx context.Context, id string) (*Variant, error) {
	var v Variant
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, translate(err, ErrVariantNotFound)
	}
	return &v, nil
}

// GetVariants loads the given variants keyed by ID. Missing IDs are absent
// from the result rather than an error.
func (r *Repository) GetVariants(ctx context.Context, ids []string) (map[string]Variant, error) {
	var variants []Variant
	if len(ids) == 0 {
		return map[string]Variant{}, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&variants).Error; err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}
	out := make(map[string]Variant, len(variants))
	for _, v := range variants {
		out[v.ID] = v
	}
	return out, nil
}

// GetProductsByIDs loads live products keyed by ID, without variants.
func (r *Repository) GetProductsByIDs(ctx context.Context, ids []string) (map[string]Product, error) {
	var products []Product
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	out := make(map[string]Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// AdjustStock adds delta (possibly negative) to a variant's stock, refusing
// to go below zero. Returns the new stock.
func (r *Repository) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var stock int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Variant{}).
			Where("id = ? AND stock + ? >= 0", id, delta).
			UpdateColumn("stock", gorm.Expr("stock + ?", delta))
		if result.Error != nil {
			return fmt.Errorf("failed to adjust stock: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var v Variant
			if err := tx.First(&v, "id = ?", id).Error; err != nil {
				return translate(err, ErrVariantNotFound)
			}
			return ErrNegativeStock
		}
		return tx.Model(&Variant{}).Select("stock").Where("id = ?", id).Scan(&stock).Error
	})
	return stock, err
}

// SetStock overwrites a variant's stock with an absolute count.
func (r *Repository) SetStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return ErrNegativeStock
	}
	result := r.db.WithContext(ctx).Model(&Variant{}).Where("id = ?", id).UpdateColumn("stock", stock)
	if result.Error != nil {
		return fmt.Errorf("failed to set stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// DecrementStock atomically removes qty units if at least qty are available.
// It reports false, without error, when stock is insufficient.
func (r *Repository) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Variant{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// RestoreStock returns qty units to a variant.
func (r *Repository) RestoreStock(ctx context.Context, id string, qty int) error {
	result := r.db.WithContext(ctx).Model(&Variant{}).Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if result.Error != nil {
		return fmt.Errorf("failed to restore stock: %w", result.Error)
	}
	return nil
}
