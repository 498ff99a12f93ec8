package discount

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := NewRepository(db).Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func intPtr(n int) *int { return &n }

func TestDiscount_Check(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	base := Discount{
		Type:      TypePercentage,
		Value:     decimal.NewFromInt(10),
		StartsAt:  now.Add(-24 * time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
		IsActive:  true,
	}
	subtotal := decimal.NewFromInt(250)

	tests := []struct {
		name   string
		mutate func(d *Discount)
		want   error
	}{
		{"applicable", func(d *Discount) {}, nil},
		{"inactive", func(d *Discount) { d.IsActive = false }, ErrInactive},
		{"expired", func(d *Discount) { d.ExpiresAt = now.Add(-time.Hour) }, ErrExpired},
		{"expires exactly now", func(d *Discount) { d.ExpiresAt = now }, ErrExpired},
		{"starts exactly now", func(d *Discount) { d.StartsAt = now }, nil},
		{"not yet active", func(d *Discount) { d.StartsAt = now.Add(time.Hour) }, ErrNotYetActive},
		{"usage reached", func(d *Discount) { d.MaxUses = intPtr(3); d.UsedCount = 3 }, ErrUsageExceeded},
		{"usage below cap", func(d *Discount) { d.MaxUses = intPtr(3); d.UsedCount = 2 }, nil},
		{"unlimited", func(d *Discount) { d.UsedCount = 1000 }, nil},
		{"minimum not met", func(d *Discount) { d.MinSubtotal = decimal.NewFromInt(300) }, ErrMinimumNotMet},
		{"expired and exhausted", func(d *Discount) {
			d.ExpiresAt = now.Add(-time.Hour)
			d.MaxUses = intPtr(1)
			d.UsedCount = 1
		}, ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.mutate(&d)
			err := d.Check(now, subtotal)
			if !errors.Is(err, tt.want) {
				t.Errorf("Check() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDiscount_Amount(t *testing.T) {
	tests := []struct {
		name     string
		typ      Type
		value    string
		subtotal string
		want     string
	}{
		{"percentage", TypePercentage, "10", "250", "25"},
		{"percentage rounds half up", TypePercentage, "15", "10.10", "1.52"},
		{"percentage over 100 capped", TypePercentage, "150", "40", "40"},
		{"fixed", TypeFixed, "30", "250", "30"},
		{"fixed capped at subtotal", TypeFixed, "300", "250", "250"},
		{"empty cart", TypeFixed, "30", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Discount{Type: tt.typ, Value: decimal.RequireFromString(tt.value)}
			got := d.Amount(decimal.RequireFromString(tt.subtotal))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Amount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func newDiscount(t *testing.T, repo *Repository, code string, maxUses *int) *Discount {
	t.Helper()
	d := &Discount{
		ID:        uuid.NewString(),
		Code:      code,
		Type:      TypePercentage,
		Value:     decimal.NewFromInt(10),
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
		MaxUses:   maxUses,
		IsActive:  true,
	}
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return d
}

func TestRepository_GetByCode_CaseInsensitive(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	newDiscount(t, repo, "save10", nil)

	for _, code := range []string{"SAVE10", "save10", " Save10 "} {
		d, err := repo.GetByCode(context.Background(), code)
		if err != nil {
			t.Fatalf("GetByCode(%q) error = %v", code, err)
		}
		if d.Code != "SAVE10" {
			t.Errorf("expected stored code SAVE10, got %q", d.Code)
		}
	}

	if _, err := repo.GetByCode(context.Background(), "NOPE"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_Create_DuplicateCode(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	newDiscount(t, repo, "WELCOME", nil)

	dup := &Discount{ID: uuid.NewString(), Code: "welcome", Type: TypeFixed, Value: decimal.NewFromInt(5),
		StartsAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.Create(context.Background(), dup); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestRepository_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent per order number", func(t *testing.T) {
		repo := NewRepository(setupTestDB(t))
		d := newDiscount(t, repo, "ONCE", nil)

		ok, err := repo.Redeem(ctx, d, "WH-00001", decimal.NewFromInt(25))
		if err != nil || !ok {
			t.Fatalf("first Redeem() = %v, %v", ok, err)
		}
		ok, err = repo.Redeem(ctx, d, "WH-00001", decimal.NewFromInt(25))
		if err != nil {
			t.Fatalf("second Redeem() error = %v", err)
		}
		if ok {
			t.Error("second Redeem() should report no new redemption")
		}

		got, err := repo.GetByID(ctx, d.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.UsedCount != 1 {
			t.Errorf("expected used count 1, got %d", got.UsedCount)
		}
	})

	t.Run("cap enforced", func(t *testing.T) {
		repo := NewRepository(setupTestDB(t))
		d := newDiscount(t, repo, "TWICE", intPtr(2))

		for _, n := range []string{"WH-00001", "WH-00002"} {
			if _, err := repo.Redeem(ctx, d, n, decimal.NewFromInt(1)); err != nil {
				t.Fatalf("Redeem(%s) error = %v", n, err)
			}
		}
		if _, err := repo.Redeem(ctx, d, "WH-00003", decimal.NewFromInt(1)); !errors.Is(err, ErrUsageExceeded) {
			t.Fatalf("expected ErrUsageExceeded, got %v", err)
		}

		redemptions, err := repo.Redemptions(ctx, d.ID)
		if err != nil {
			t.Fatalf("Redemptions() error = %v", err)
		}
		if len(redemptions) != 2 {
			t.Errorf("expected 2 redemptions, got %d", len(redemptions))
		}

		got, _ := repo.GetByID(ctx, d.ID)
		if err := got.Check(time.Now(), decimal.NewFromInt(100)); !errors.Is(err, ErrUsageExceeded) {
			t.Errorf("expected exhausted coupon to fail Check, got %v", err)
		}
	})
}

func TestIsRuleError(t *testing.T) {
	if !IsRuleError(ErrExpired) {
		t.Error("ErrExpired should be a rule error")
	}
	if IsRuleError(errors.New("db down")) {
		t.Error("arbitrary error should not be a rule error")
	}
}
