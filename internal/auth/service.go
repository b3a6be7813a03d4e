package auth

import (
	"context"
	"errors"

	"github.com/acumant/ai-portal/internal/database/models"
	"github.com/acumant/ai-portal/internal/entitlement"
	"github.com/acumant/ai-portal/pkg/crypto"
	"github.com/acumant/ai-portal/pkg/validation"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user is inactive")
)

type Service struct {
	users entitlement.UserStore
	jwt   *JWTService
}

func NewService(users entitlement.UserStore, jwt *JWTService) *Service {
	return &Service{users: users, jwt: jwt}
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login checks the password before the account status so that inactive
// accounts are only revealed to someone holding the password.
func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, validation.NormalizeEmail(input.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if !crypto.CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		return nil, ErrInactiveUser
	}

	token, err := s.jwt.GenerateToken(user.ID, user.OrganizationID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		Token: token,
		User:  user,
	}, nil
}

func (s *Service) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
