package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriba_backend/internal/config"
	"scriba_backend/internal/models"
)

func setupJWTConfig(t *testing.T) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.TTL = 60
	config.AppConfig = cfg
}

func TestGenerateAndParseToken(t *testing.T) {
	setupJWTConfig(t)

	user := &models.User{Role: models.UserRoleAdmin}
	user.ID = "user-1"

	token, err := GenerateToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.UserRoleAdmin, claims.Role)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	setupJWTConfig(t)

	_, err := ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	setupJWTConfig(t)

	user := &models.User{Role: models.UserRoleUser}
	user.ID = "user-2"
	token, err := GenerateToken(user)
	require.NoError(t, err)

	config.AppConfig.JWT.Secret = "rotated-secret"
	_, err = ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
