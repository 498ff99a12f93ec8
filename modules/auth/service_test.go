package auth

import (
	"context"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/wighaven/storefront/domain/user"
	"github.com/wighaven/storefront/modules/database"
	"golang.org/x/crypto/bcrypt"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Open(database.Config{Path: ":memory:"})
	require.NoError(t, err)
	users := domain.NewRepository(db)
	require.NoError(t, users.Migrate())
	return NewService(users, NewPasswordHasher(bcrypt.MinCost), NewJWTManager(testJWTConfig()), &mockLogger{})
}

func TestService_RegisterLoginRefresh(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: " Grace@Example.com ", Password: "hopper1906", Name: "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", u.Email)
	assert.Equal(t, domain.RoleCustomer, u.Role)
	assert.NotEqual(t, "hopper1906", u.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{Email: "GRACE@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, domain.ErrExists)

	_, err = svc.Login(ctx, "grace@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "hopper1906")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	pair, err := svc.Login(ctx, "Grace@example.com", "hopper1906")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, domain.RoleCustomer, claims.Role)

	_, err = svc.ValidateToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	refreshed, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_RegisterValidation(t *testing.T) {
	svc := setupService(t)
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"bad email", RegisterInput{Email: "not-an-email", Password: "password123"}, ErrInvalidEmail},
		{"short password", RegisterInput{Email: "a@example.com", Password: "short"}, ErrWeakPassword},
		{"long password", RegisterInput{Email: "a@example.com", Password: string(long)}, ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestService_EnsureAdmin(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	admin, err := svc.EnsureAdmin(ctx, "admin@wighaven.test", "admin-password")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())

	again, err := svc.EnsureAdmin(ctx, "admin@wighaven.test", "admin-password")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	customer, err := svc.Register(ctx, RegisterInput{Email: "owner@wighaven.test", Password: "password123"})
	require.NoError(t, err)
	promoted, err := svc.EnsureAdmin(ctx, "owner@wighaven.test", "ignored-password")
	require.NoError(t, err)
	assert.Equal(t, customer.ID, promoted.ID)

	pair, err := svc.Login(ctx, "owner@wighaven.test", "password123")
	require.NoError(t, err)
	claims, err := svc.ValidateToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}
