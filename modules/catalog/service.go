// Package catalog provides the catalog service with caching support.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	domain "github.com/wighaven/storefront/domain/catalog"
	"github.com/wighaven/storefront/modules/cache"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidInput is returned when a create request misses required fields.
var ErrInvalidInput = errors.New("invalid catalog input")

// Service provides catalog reads with cache-aside and admin writes that
// invalidate the cache.
type Service struct {
	repo    *domain.Repository
	cache   cache.CacheService
	logger  types.Logger
	sfGroup singleflight.Group

	// listGen versions every listing key. Bumping it orphans all cached
	// listings at once; they expire through the cache TTL.
	listGen atomic.Uint64
}

// NewService creates a new catalog service.
func NewService(repo *domain.Repository, c cache.CacheService, logger types.Logger) *Service {
	if c == nil {
		c = cache.NewNoopService()
	}
	return &Service{
		repo:   repo,
		cache:  c,
		logger: logger,
	}
}

func cacheKeyProduct(id string) string {
	return "product:" + id
}

func (s *Service) cacheKeyList(kind string, parts ...any) string {
	return fmt.Sprintf("list:%d:%s:%v", s.listGen.Load(), kind, parts)
}

// cached runs load through the cache and singleflight. dest must be a pointer.
func (s *Service) cached(ctx context.Context, key string, dest any, load func() (any, error)) (any, error) {
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("Cache read failed", "key", key, "error", err)
	}
	if found {
		return dest, nil
	}

	val, err, _ := s.sfGroup.Do(key, load)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, val); err != nil {
		s.logger.Warn("Cache write failed", "key", key, "error", err)
	}
	return val, nil
}

// Invalidate drops cached products and all cached listings.
func (s *Service) Invalidate(ctx context.Context, productIDs ...string) {
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		if id != "" {
			keys = append(keys, cacheKeyProduct(id))
		}
	}
	if len(keys) > 0 {
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.logger.Warn("Cache invalidation failed", "keys", keys, "error", err)
		}
	}
	s.listGen.Add(1)
}

// ListCategories returns categories with product counts.
func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	var cached []domain.Category
	val, err := s.cached(ctx, s.cacheKeyList("categories", activeOnly), &cached, func() (any, error) {
		return s.repo.ListCategories(ctx, activeOnly)
	})
	if err != nil {
		return nil, err
	}
	switch v := val.(type) {
	case *[]domain.Category:
		return *v, nil
	case []domain.Category:
		return v, nil
	}
	return nil, nil
}

// GetCategoryBySlug retrieves one category.
func (s *Service) GetCategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	return s.repo.GetCategoryBySlug(ctx, slug)
}

// GetCategory retrieves one category by ID.
func (s *Service) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// CreateCategory creates a category. The slug defaults to the slugified name.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	c := &domain.Category{
		ID:       uuid.NewString(),
		Type:     domain.CategoryStandard,
		IsActive: true,
	}
	applyCategory(c, in)
	if c.Slug == "" {
		c.Slug = domain.Slugify(c.Name)
	}
	if !c.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown category type %q", ErrInvalidInput, c.Type)
	}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	s.logger.Info("Category created", "id", c.ID, "slug", c.Slug)
	return c, nil
}

// UpdateCategory applies the non-nil fields of in.
func (s *Service) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*domain.Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	applyCategory(c, in)
	if !c.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown category type %q", ErrInvalidInput, c.Type)
	}
	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	return c, nil
}

// DeleteCategory removes a category, moving its products to transferTo.
func (s *Service) DeleteCategory(ctx context.Context, id, transferTo string) (int64, error) {
	moved, err := s.repo.DeleteCategory(ctx, id, transferTo)
	if err != nil {
		return 0, err
	}
	s.Invalidate(ctx)
	s.logger.Info("Category deleted", "id", id, "transferTo", transferTo, "moved", moved)
	return moved, nil
}

func applyCategory(c *domain.Category, in CategoryInput) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		c.Slug = domain.Slugify(*in.Slug)
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	if in.IsFeatured != nil {
		c.IsFeatured = *in.IsFeatured
	}
}

// ListProducts returns a page of products.
func (s *Service) ListProducts(ctx context.Context, f domain.ProductFilter) (*ProductPage, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	key := s.cacheKeyList("products", f.CategoryID, f.Search, f.ActiveOnly, f.Offset, f.Limit)

	var cached ProductPage
	val, err := s.cached(ctx, key, &cached, func() (any, error) {
		products, total, err := s.repo.ListProducts(ctx, f)
		if err != nil {
			return nil, err
		}
		return &ProductPage{Products: products, Total: total, Offset: f.Offset, Limit: f.Limit}, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*ProductPage), nil
}

// GetProduct retrieves a product with its variants (cache-aside).
func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var cached domain.Product
	val, err := s.cached(ctx, cacheKeyProduct(id), &cached, func() (any, error) {
		return s.repo.GetProduct(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return val.(*domain.Product), nil
}

// GetProductBySlug retrieves a product by slug. Slug lookups bypass the
// cache so renames never serve a stale mapping.
func (s *Service) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.repo.GetProductBySlug(ctx, slug)
}

// CreateProduct creates a product together with any variants given.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.BasePrice == nil || in.BasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base_price must be >= 0", ErrInvalidInput)
	}
	p := &domain.Product{
		ID:       uuid.NewString(),
		Images:   []string{},
		IsActive: true,
	}
	applyProduct(p, in)
	if p.Slug == "" {
		p.Slug = domain.Slugify(p.Name)
	}
	if p.CategoryID != "" {
		if _, err := s.repo.GetCategory(ctx, p.CategoryID); err != nil {
			return nil, err
		}
	}
	for _, vin := range in.Variants {
		v, err := newVariant(p.ID, p.BasePrice, vin)
		if err != nil {
			return nil, err
		}
		p.Variants = append(p.Variants, *v)
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.Invalidate(ctx)
	s.logger.Info("Product created", "id", p.ID, "slug", p.Slug, "variants", len(p.Variants))
	return p, nil
}

// UpdateProduct applies the non-nil product fields. Variants in the input are
// ignored; use the variant operations.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (*domain.Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	applyProduct(p, in)
	if p.BasePrice.IsNegative() {
		return nil, fmt.Errorf("%w: base_price must be >= 0", ErrInvalidInput)
	}
	if in.CategoryID != nil && p.CategoryID != "" {
		if _, err := s.repo.GetCategory(ctx, p.CategoryID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, id)
	return p, nil
}

// DeleteProduct soft-deletes a product.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.Invalidate(ctx, id)
	s.logger.Info("Product deleted", "id", id)
	return nil
}

func applyProduct(p *domain.Product, in ProductInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		p.Slug = domain.Slugify(*in.Slug)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.BasePrice != nil {
		p.BasePrice = *in.BasePrice
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func newVariant(productID string, basePrice decimal.Decimal, in VariantInput) (*domain.Variant, error) {
	if in.SKU == nil || strings.TrimSpace(*in.SKU) == "" {
		return nil, fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	v := &domain.Variant{
		ID:        uuid.NewString(),
		ProductID: productID,
		Price:     basePrice,
		Images:    []string{},
		IsActive:  true,
	}
	applyVariant(v, in)
	if in.Stock != nil {
		v.Stock = *in.Stock
	}
	if v.Stock < 0 {
		return nil, domain.ErrNegativeStock
	}
	if v.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	return v, nil
}

func applyVariant(v *domain.Variant, in VariantInput) {
	if in.SKU != nil {
		v.SKU = strings.ToUpper(strings.TrimSpace(*in.SKU))
	}
	if in.Color != nil {
		v.Color = *in.Color
	}
	if in.Length != nil {
		v.Length = *in.Length
	}
	if in.Texture != nil {
		v.Texture = *in.Texture
	}
	if in.Size != nil {
		v.Size = *in.Size
	}
	if in.Price != nil {
		v.Price = *in.Price
	}
	if in.Images != nil {
		v.Images = in.Images
	}
	if in.IsActive != nil {
		v.IsActive = *in.IsActive
	}
}

// CreateVariant adds a variant to an existing product.
func (s *Service) CreateVariant(ctx context.Context, productID string, in VariantInput) (*domain.Variant, error) {
	p, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	v, err := newVariant(p.ID, p.BasePrice, in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateVariant(ctx, v); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, productID)
	return v, nil
}

// UpdateVariant applies the non-nil variant fields. Stock is not editable here.
func (s *Service) UpdateVariant(ctx context.Context, id string, in VariantInput) (*domain.Variant, error) {
	v, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return nil, err
	}
	applyVariant(v, in)
	if v.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be >= 0", ErrInvalidInput)
	}
	if err := s.repo.UpdateVariant(ctx, v); err != nil {
		return nil, err
	}
	s.Invalidate(ctx, v.ProductID)
	return v, nil
}

// AdjustStock applies an inventory correction and returns the new stock.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	v, err := s.repo.GetVariant(ctx, id)
	if err != nil {
		return 0, err
	}
	stock, err := s.repo.AdjustStock(ctx, id, delta)
	if err != nil {
		return 0, err
	}
	s.Invalidate(ctx, v.ProductID)
	s.logger.Info("Stock adjusted", "variantId", id, "sku", v.SKU, "delta", delta, "stock", stock)
	return stock, nil
}

// GetVariants returns live price and stock for the given variants, read from
// the database. A variant is Available only when it and its product are
// active and the product is not deleted.
func (s *Service) GetVariants(ctx context.Context, ids []string) (map[string]VariantInfo, error) {
	variants, err := s.repo.GetVariants(ctx, ids)
	if err != nil {
		return nil, err
	}
	productIDs := make([]string, 0, len(variants))
	for _, v := range variants {
		productIDs = append(productIDs, v.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[string]VariantInfo, len(variants))
	for id, v := range variants {
		p, live := products[v.ProductID]
		images := v.Images
		if len(images) == 0 && live {
			images = p.Images
		}
		out[id] = VariantInfo{
			VariantID:   v.ID,
			ProductID:   v.ProductID,
			ProductName: p.Name,
			Label:       v.Label(),
			SKU:         v.SKU,
			Price:       v.Price,
			Stock:       v.Stock,
			Images:      images,
			Available:   live && p.IsActive && v.IsActive,
		}
	}
	return out, nil
}
