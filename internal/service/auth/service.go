package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careloop/patient-api/internal/config"
	"github.com/careloop/patient-api/internal/model"
	"github.com/careloop/patient-api/internal/repository"
	"github.com/careloop/patient-api/pkg/auth"
	"github.com/careloop/patient-api/pkg/security"
)

type Service struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	expiry time.Duration
}

func NewService(users repository.UserRepository, cfg config.JWTConfig) *Service {
	expiry := time.Duration(cfg.ExpiryHours) * time.Hour
	return &Service{
		users:  users,
		tokens: auth.NewTokenManager(cfg.Secret, expiry, cfg.Issuer),
		expiry: expiry,
	}
}

// Login verifies credentials and issues an access token carrying the
// actor's identity and role.
func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, model.ErrInvalidCredentials
	}

	if !user.Active {
		return nil, model.ErrInvalidCredentials
	}

	if !security.CheckPassword(req.Password, user.PasswordHash) {
		return nil, model.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("failed to record login time")
	}

	return &model.TokenResponse{
		AccessToken: token,
		ExpiresAt:   now.Add(s.expiry),
		Role:        user.Role,
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *Service) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return s.tokens.Validate(token)
}
