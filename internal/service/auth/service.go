package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/rdv-api/internal/config"
	"github.com/jwalitptl/rdv-api/internal/model"
	"github.com/jwalitptl/rdv-api/pkg/auth"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/logger"
	"github.com/jwalitptl/rdv-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service authenticates the configured administrator.
type Service struct {
	admin  config.AdminConfig
	jwtSvc auth.JWTService
	logger *logger.Logger
}

func NewService(admin config.AdminConfig, jwtSvc auth.JWTService, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{admin: admin, jwtSvc: jwtSvc, logger: log}
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	emailOK := s.admin.Email != "" && strings.EqualFold(strings.TrimSpace(email), s.admin.Email)
	hash := s.admin.PasswordHash
	if !emailOK {
		hash = ""
	}
	if err := security.CheckPassword(hash, password); err != nil {
		s.logger.Warn("admin login rejected", "email", email)
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	token, expiresAt, err := s.jwtSvc.GenerateAccessToken(s.admin.Email, auth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.logger.Info("admin logged in", "email", s.admin.Email)
	return &model.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken returns the claims of a valid token.
func (s *Service) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}
