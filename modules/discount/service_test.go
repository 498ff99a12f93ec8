package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/wighaven/storefront/domain/discount"
	"github.com/wighaven/storefront/modules/database"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	repo := domain.NewRepository(db)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	svc := NewService(repo, &mockLogger{})
	svc.now = func() time.Time { return testNow }
	return svc
}

func create(t *testing.T, svc *Service, code string, typ domain.Type, value string, mutate func(*Input)) *domain.Discount {
	t.Helper()
	v := decimal.RequireFromString(value)
	in := Input{Code: &code, Type: &typ, Value: &v}
	if mutate != nil {
		mutate(&in)
	}
	d, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	return d
}

func TestService_Validate_Save10(t *testing.T) {
	svc := setupTestService(t)
	create(t, svc, "SAVE10", domain.TypePercentage, "10", nil)

	v, err := svc.Validate(context.Background(), "save10", decimal.NewFromInt(250))
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "SAVE10", v.Code)
	assert.True(t, v.DiscountAmount.Equal(decimal.NewFromInt(25)), "got %s", v.DiscountAmount)
}

func TestService_Validate_Rules(t *testing.T) {
	svc := setupTestService(t)
	past := testNow.Add(-time.Hour)
	future := testNow.Add(48 * time.Hour)
	farFuture := testNow.Add(96 * time.Hour)
	one := 1

	create(t, svc, "EXPIRED5", domain.TypeFixed, "5", func(in *Input) {
		start := testNow.Add(-48 * time.Hour)
		in.StartsAt, in.ExpiresAt = &start, &past
	})
	create(t, svc, "SOON", domain.TypeFixed, "5", func(in *Input) {
		in.StartsAt, in.ExpiresAt = &future, &farFuture
	})
	capped := create(t, svc, "ONCE", domain.TypePercentage, "20", func(in *Input) {
		in.MaxUses = &one
	})
	create(t, svc, "BIGSPEND", domain.TypeFixed, "15", func(in *Input) {
		minSub := decimal.NewFromInt(300)
		in.MinSubtotal = &minSub
	})

	_, err := svc.repo.Redeem(context.Background(), capped, "WH-00001", decimal.NewFromInt(10))
	require.NoError(t, err)

	tests := []struct {
		code string
		want error
	}{
		{"EXPIRED5", domain.ErrExpired},
		{"SOON", domain.ErrNotYetActive},
		{"ONCE", domain.ErrUsageExceeded},
		{"BIGSPEND", domain.ErrMinimumNotMet},
		{"NOPE", domain.ErrNotFound},
		{"  ", domain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := svc.Validate(context.Background(), tt.code, decimal.NewFromInt(250))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_Create_Validation(t *testing.T) {
	svc := setupTestService(t)
	pct := domain.TypePercentage
	code := "BAD"
	tooMuch := decimal.NewFromInt(150)
	zero := decimal.Zero
	noUses := 0

	tests := []struct {
		name string
		in   Input
	}{
		{"missing code", Input{Type: &pct, Value: &tooMuch}},
		{"percentage over 100", Input{Code: &code, Type: &pct, Value: &tooMuch}},
		{"zero value", Input{Code: &code, Type: &pct, Value: &zero}},
		{"zero max uses", Input{Code: &code, Type: &pct, Value: decimalPtr("5"), MaxUses: &noUses}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	create(t, svc, "Dup", domain.TypeFixed, "5", nil)
	dup := "dup"
	_, err := svc.Create(context.Background(), Input{Code: &dup, Type: &pct, Value: decimalPtr("5")})
	assert.ErrorIs(t, err, domain.ErrExists)
}

func TestService_UpdateAndDeactivate(t *testing.T) {
	svc := setupTestService(t)
	ctx := context.Background()
	five := 5
	d := create(t, svc, "SPRING", domain.TypePercentage, "10", func(in *Input) { in.MaxUses = &five })

	updated, err := svc.Update(ctx, d.ID, Input{Value: decimalPtr("15"), ClearMaxUses: true})
	require.NoError(t, err)
	assert.Nil(t, updated.MaxUses)

	v, err := svc.Validate(ctx, "spring", decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.True(t, v.DiscountAmount.Equal(decimal.NewFromInt(15)))

	require.NoError(t, svc.Deactivate(ctx, d.ID))
	_, err = svc.Validate(ctx, "spring", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrInactive)
}

func TestModule_ValidateService(t *testing.T) {
	svc := setupTestService(t)
	create(t, svc, "SAVE10", domain.TypePercentage, "10", nil)
	m := &Module{service: svc, logger: &mockLogger{}}

	resp, err := m.validate(context.Background(), ValidateRequest{Code: "save10", Subtotal: decimal.NewFromInt(80)}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.True(t, resp.DiscountAmount.Equal(decimal.NewFromInt(8)))

	resp, err = m.validate(context.Background(), ValidateRequest{Code: "unknown", Subtotal: decimal.NewFromInt(80)}, nil)
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.Equal(t, domain.ErrNotFound.Error(), resp.Reason)
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
