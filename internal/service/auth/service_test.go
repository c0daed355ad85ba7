package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/rdv-api/internal/config"
	"github.com/jwalitptl/rdv-api/pkg/auth"
	apperrors "github.com/jwalitptl/rdv-api/pkg/errors"
	"github.com/jwalitptl/rdv-api/pkg/security"
)

func newAuthService(t *testing.T) *Service {
	t.Helper()
	hash, err := security.HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	return NewService(
		config.AdminConfig{Email: "admin@example.com", PasswordHash: hash},
		auth.NewJWTService("jwt-secret", time.Hour),
		nil,
	)
}

func TestLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, "Admin@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "Bearer", tokens.TokenType)

	claims, err := svc.ValidateToken(ctx, tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestLogin_Rejected(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, "admin@example.com", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = svc.Login(ctx, "someone@example.com", "s3cret-pass")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))

	_, err = svc.ValidateToken(ctx, "garbage")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}
