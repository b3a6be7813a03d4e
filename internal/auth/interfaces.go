package auth

import (
	"context"

	"github.com/acumant/ai-portal/internal/database/models"
)

// Authenticator is what the login handler needs from Service.
type Authenticator interface {
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// TokenService is what the auth middleware needs from JWTService.
type TokenService interface {
	GenerateToken(userID, orgID, email, role string) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// Compile-time interface satisfaction checks
var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
)
