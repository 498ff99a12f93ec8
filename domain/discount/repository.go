package discount

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository provides database operations for discounts and redemptions.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new discount repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Migrate creates or updates the discount tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Discount{}, &Redemption{})
}

// Create inserts a discount. The code is normalised before storing.
func (r *Repository) Create(ctx context.Context, d *Discount) error {
	d.Code = NormalizeCode(d.Code)
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrExists
		}
		return fmt.Errorf("failed to create discount: %w", err)
	}
	return nil
}

// Update saves the editable fields of d. UsedCount is never overwritten here.
func (r *Repository) Update(ctx context.Context, d *Discount) error {
	d.Code = NormalizeCode(d.Code)
	result := r.db.WithContext(ctx).Model(&Discount{}).Where("id = ?", d.ID).
		Select("code", "description", "type", "value", "min_subtotal", "starts_at", "expires_at", "max_uses", "is_active").
		Updates(d)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrExists
		}
		return fmt.Errorf("failed to update discount: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive toggles a discount on or off.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	result := r.db.WithContext(ctx).Model(&Discount{}).Where("id = ?", id).UpdateColumn("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update discount: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a discount by ID.
func (r *Repository) GetByID(ctx context.Context, id string) (*Discount, error) {
	var d Discount
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}
	return &d, nil
}

// GetByCode retrieves a discount by code, ignoring case.
func (r *Repository) GetByCode(ctx context.Context, code string) (*Discount, error) {
	var d Discount
	if err := r.db.WithContext(ctx).First(&d, "code = ?", NormalizeCode(code)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get discount: %w", err)
	}
	return &d, nil
}

// List returns all discounts, newest first.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Discount, error) {
	var discounts []Discount
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&discounts).Error; err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	return discounts, nil
}

// Redeem records one use of d by orderNumber and increments its usage count.
// A repeated call for the same order number is a no-op and reports false.
// The increment is guarded in SQL so concurrent redemptions cannot push
// usedCount past maxUses; that case returns ErrUsageExceeded.
func (r *Repository) Redeem(ctx context.Context, d *Discount, orderNumber string, amount decimal.Decimal) (bool, error) {
	redeemed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Redemption{}).
			Where("discount_id = ? AND order_number = ?", d.ID, orderNumber).
			Count(&existing).Error; err != nil {
			return fmt.Errorf("failed to check redemption: %w", err)
		}
		if existing > 0 {
			return nil
		}

		result := tx.Model(&Discount{}).
			Where("id = ? AND (max_uses IS NULL OR used_count < max_uses)", d.ID).
			UpdateColumn("used_count", gorm.Expr("used_count + 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to increment usage: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrUsageExceeded
		}

		if err := tx.Create(&Redemption{
			DiscountID:  d.ID,
			OrderNumber: orderNumber,
			Code:        d.Code,
			Amount:      amount,
		}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsageExceeded
			}
			return fmt.Errorf("failed to record redemption: %w", err)
		}
		redeemed = true
		return nil
	})
	return redeemed, err
}

// Redemptions lists the recorded uses of a discount.
func (r *Repository) Redemptions(ctx context.Context, discountID string) ([]Redemption, error) {
	var out []Redemption
	if err := r.db.WithContext(ctx).Where("discount_id = ?", discountID).
		Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list redemptions: %w", err)
	}
	return out, nil
}
