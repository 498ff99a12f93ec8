package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter narrows order listings.
type Filter struct {
	Status        Status
	PaymentStatus PaymentStatus
	UserID        string
	Email         string
	Offset        int
	Limit         int
}

// StatusUpdate carries the optional fields written alongside a status change.
type StatusUpdate struct {
	Notes          string
	TrackingNumber string
	Carrier        string
	Actor          string
	At             time.Time
}

// Repository provides database operations for orders.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new order repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Migrate creates or updates the order tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&Order{}, &Item{}, &StatusChange{}, &Sequence{})
}

// NextNumber increments the named sequence and formats the result as
// PREFIX-00001. Inside a transaction the row stays locked until commit, so
// concurrent checkouts never share a number.
func (r *Repository) NextNumber(ctx context.Context, prefix string) (string, error) {
	db := r.db.WithContext(ctx)
	name := "order:" + prefix
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Sequence{Name: name, Value: 0}).Error; err != nil {
		return "", fmt.Errorf("failed to init sequence: %w", err)
	}
	if err := db.Model(&Sequence{}).Where("name = ?", name).
		UpdateColumn("value", gorm.Expr("value + 1")).Error; err != nil {
		return "", fmt.Errorf("failed to advance sequence: %w", err)
	}
	var seq Sequence
	if err := db.First(&seq, "name = ?", name).Error; err != nil {
		return "", fmt.Errorf("failed to read sequence: %w", err)
	}
	return FormatNumber(prefix, seq.Value), nil
}

// FormatNumber renders an order number from prefix and sequence value.
func FormatNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// Create inserts an order with its items and initial history entry.
func (r *Repository) Create(ctx context.Context, o *Order) error {
	if len(o.History) == 0 {
		o.History = []StatusChange{{To: o.Status, Actor: "checkout"}}
	}
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *Repository) find(ctx context.Context, query string, arg any) (*Order, error) {
	var o Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&o, query, arg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &o, nil
}

// GetByID retrieves an order by internal id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.find(ctx, "id = ?", id)
}

// GetByNumber retrieves an order by its order number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return r.find(ctx, "order_number = ?", number)
}

// GetByReference retrieves an order by payment reference.
func (r *Repository) GetByReference(ctx context.Context, reference string) (*Order, error) {
	return r.find(ctx, "payment_reference = ?", reference)
}

// List returns orders matching f, newest first, and the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]Order, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("status = ?", f.Status)
		}
		if f.PaymentStatus != "" {
			db = db.Where("payment_status = ?", f.PaymentStatus)
		}
		if f.UserID != "" {
			db = db.Where("user_id = ?", f.UserID)
		}
		if f.Email != "" {
			db = db.Where("customer_email = ?", f.Email)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&Order{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var orders []Order
	if err := r.db.WithContext(ctx).Scopes(scope).Preload("Items").
		Order("created_at DESC").Offset(f.Offset).Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// ApplyStatus moves an order from one status to another and records the
// change. The write is conditional on the current status so two concurrent
// transitions cannot both apply; the loser gets ErrConcurrentUpdate.
func (r *Repository) ApplyStatus(ctx context.Context, id string, from, to Status, u StatusUpdate) error {
	at := u.At
	if at.IsZero() {
		at = time.Now()
	}
	updates := map[string]any{"status": to, "updated_at": at}
	if u.TrackingNumber != "" {
		updates["tracking_number"] = u.TrackingNumber
	}
	if u.Carrier != "" {
		updates["carrier"] = u.Carrier
	}
	if from != to {
		switch to {
		case StatusShipped:
			updates["shipped_at"] = at
		case StatusDelivered:
			updates["delivered_at"] = at
		case StatusCancelled:
			updates["cancelled_at"] = at
		case StatusRefunded:
			updates["refunded_at"] = at
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Order{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update order status: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		if err := tx.Create(&StatusChange{
			CreatedAt: at,
			OrderID:   id,
			From:      from,
			To:        to,
			Notes:     u.Notes,
			Actor:     u.Actor,
		}).Error; err != nil {
			return fmt.Errorf("failed to record status change: %w", err)
		}
		return nil
	})
}

// ClaimStockRestore flips the stock-restored flag. It reports true only for
// the first caller, which then owns returning the units to inventory.
func (r *Repository) ClaimStockRestore(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND stock_restored = ?", id, false).
		UpdateColumn("stock_restored", true)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim stock restore: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SetPaymentReference stores the gateway reference for an order.
func (r *Repository) SetPaymentReference(ctx context.Context, id, provider, reference string) error {
	result := r.db.WithContext(ctx).Model(&Order{}).Where("id = ?", id).
		Updates(map[string]any{"payment_provider": provider, "payment_reference": reference})
	if result.Error != nil {
		return fmt.Errorf("failed to set payment reference: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPaymentStatus records a new payment status. It reports false when the
// order already had that status.
func (r *Repository) SetPaymentStatus(ctx context.Context, id string, status PaymentStatus, at time.Time) (bool, error) {
	updates := map[string]any{"payment_status": status, "updated_at": at}
	if status == PaymentPaid {
		updates["paid_at"] = at
	}
	result := r.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND payment_status <> ?", id, status).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to set payment status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// AwaitingPayment returns pending orders whose payment is unsettled and that
// were created before the cutoff, oldest first.
func (r *Repository) AwaitingPayment(ctx context.Context, before time.Time, limit int) ([]Order, error) {
	var orders []Order
	if err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status IN ? AND created_at < ?",
			StatusPending, []PaymentStatus{PaymentPending, PaymentFailed}, before).
		Order("created_at ASC").Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list unpaid orders: %w", err)
	}
	return orders, nil
}
