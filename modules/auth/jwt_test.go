package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domain "github.com/wighaven/storefront/domain/user"
)

func testJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:            "test-secret-key",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		Issuer:               "test-issuer",
	}
}

var testUser = &domain.User{ID: "user-123", Email: "ada@example.com", Role: domain.RoleAdmin}

func TestJWTManager_AccessToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	token, err := manager.GenerateAccessToken(testUser)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.UserID != testUser.ID {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, testUser.ID)
	}
	if claims.Email != testUser.Email {
		t.Errorf("claims.Email = %v, want %v", claims.Email, testUser.Email)
	}
	if claims.Role != domain.RoleAdmin {
		t.Errorf("claims.Role = %v, want admin", claims.Role)
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("claims.Issuer = %v", claims.Issuer)
	}

	if _, err := manager.ValidateRefreshToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token accepted as refresh token: %v", err)
	}
}

func TestJWTManager_RefreshToken(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	token, err := manager.GenerateRefreshToken(testUser)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}
	if _, err := manager.ValidateRefreshToken(token); err != nil {
		t.Fatalf("ValidateRefreshToken() error = %v", err)
	}
	if _, err := manager.ValidateAccessToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token accepted as access token: %v", err)
	}
}

func TestJWTManager_Expired(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())
	issued := time.Now().Add(-time.Hour)
	manager.now = func() time.Time { return issued }

	token, err := manager.GenerateAccessToken(testUser)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	manager.now = time.Now
	if _, err := manager.ValidateAccessToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("expected ErrExpiredToken, got %v", err)
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	otherSecret := testJWTConfig()
	otherSecret.SecretKey = "another-secret"
	forged, _ := NewJWTManager(otherSecret).GenerateAccessToken(testUser)

	otherIssuer := testJWTConfig()
	otherIssuer.Issuer = "someone-else"
	foreign, _ := NewJWTManager(otherIssuer).GenerateAccessToken(testUser)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID:    testUser.ID,
		TokenType: tokenAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", forged},
		{"wrong issuer", foreign},
		{"unsigned", none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.ValidateAccessToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewJWTManager_Defaults(t *testing.T) {
	manager := NewJWTManager(JWTConfig{})
	if !manager.UsesDevSecret() {
		t.Error("empty secret should fall back to the development secret")
	}
	if manager.AccessTokenDuration() != int64((15 * time.Minute).Seconds()) {
		t.Errorf("AccessTokenDuration() = %d", manager.AccessTokenDuration())
	}
}
