package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateToken(7, "restaurant", 3)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "restaurant", claims.Role)
	assert.Equal(t, uint(3), claims.RestaurantID)
}

func TestParseTokenWrongSecret(t *testing.T) {
	SetJWTSecret("one")
	token, err := GenerateToken(1, "rider", 0)
	require.NoError(t, err)

	SetJWTSecret("two")
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestBlacklistedTokenIsRejected(t *testing.T) {
	SetJWTSecret("test-secret")
	token, err := GenerateToken(9, "customer", 0)
	require.NoError(t, err)

	BlacklistToken(token)
	assert.True(t, IsTokenBlacklisted(token))

	_, err = ParseToken(token)
	assert.Error(t, err)
}
