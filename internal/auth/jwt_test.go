package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spark-go/internal/config"
)

type memoryBlacklist struct {
	revoked map[string]struct{}
}

func (b *memoryBlacklist) Add(_ context.Context, jti string, _ time.Time) error {
	b.revoked[jti] = struct{}{}
	return nil
}

func (b *memoryBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	_, ok := b.revoked[jti]
	return ok, nil
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{JWTSecretKey: "unit-test-secret", JWTExpiry: time.Hour}
}

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := testAuthConfig()

	token, err := GenerateToken(42, "a@example.com", cfg)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(context.Background(), token, cfg.JWTSecretKey, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID, "token 应携带 JTI")
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(cfg.JWTExpiry), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateTokenWrongKey(t *testing.T) {
	cfg := testAuthConfig()

	token, err := GenerateToken(1, "a@example.com", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, "another-secret", nil)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	cfg := testAuthConfig()
	cfg.JWTExpiry = -time.Minute

	token, err := GenerateToken(1, "a@example.com", cfg)
	require.NoError(t, err)

	_, err = ValidateToken(context.Background(), token, cfg.JWTSecretKey, nil)
	assert.Error(t, err)
}

func TestValidateTokenRejectsBlacklisted(t *testing.T) {
	cfg := testAuthConfig()
	blacklist := &memoryBlacklist{revoked: make(map[string]struct{})}

	token, err := GenerateToken(1, "a@example.com", cfg)
	require.NoError(t, err)

	claims, err := ValidateToken(context.Background(), token, cfg.JWTSecretKey, blacklist)
	require.NoError(t, err)

	require.NoError(t, blacklist.Add(context.Background(), claims.ID, claims.ExpiresAt.Time))

	_, err = ValidateToken(context.Background(), token, cfg.JWTSecretKey, blacklist)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, CheckPasswordHash("secret123", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}
