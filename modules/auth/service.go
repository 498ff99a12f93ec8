// Package auth issues and validates storefront identities.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	domain "github.com/wighaven/storefront/domain/user"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidEmail is returned when email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// RegisterInput is a new customer account.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Service handles authentication business logic.
type Service struct {
	users  *domain.Repository
	hasher *PasswordHasher
	jwt    *JWTManager
	logger types.Logger
}

// NewService creates a new Service.
func NewService(users *domain.Repository, hasher *PasswordHasher, jwt *JWTManager, logger types.Logger) *Service {
	return &Service{users: users, hasher: hasher, jwt: jwt, logger: logger}
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}

// Register creates a customer account.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}
	if exists {
		return nil, domain.ErrExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("User registered", "userId", u.ID)
	return u, nil
}

// Login authenticates a user and returns tokens.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.tokenPair(u)
}

// Refresh exchanges a refresh token for a new token pair. The role is read
// again so promotions take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return s.tokenPair(u)
}

// ValidateToken validates an access token and returns its identity.
func (s *Service) ValidateToken(_ context.Context, token string) (*domain.Claims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return &domain.Claims{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID)
}

// EnsureAdmin creates the admin account, or promotes an existing account with
// that email.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !u.IsAdmin() {
			if err := s.users.SetRole(ctx, u.ID, domain.RoleAdmin); err != nil {
				return nil, fmt.Errorf("failed to promote admin: %w", err)
			}
			u.Role = domain.RoleAdmin
			s.logger.Info("Promoted existing user to admin", "userId", u.ID)
		}
		return u, nil
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to find admin: %w", err)
	}

	u, err = s.Register(ctx, RegisterInput{Email: email, Password: password, Name: "Administrator"})
	if err != nil {
		return nil, err
	}
	if err := s.users.SetRole(ctx, u.ID, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("failed to promote admin: %w", err)
	}
	u.Role = domain.RoleAdmin
	s.logger.Info("Admin account created", "userId", u.ID)
	return u, nil
}

func (s *Service) tokenPair(u *domain.User) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(u)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwt.GenerateRefreshToken(u)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.AccessTokenDuration(),
		TokenType:    "Bearer",
	}, nil
}
