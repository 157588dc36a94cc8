package auth

import (
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminToken_RoundTrip(t *testing.T) {
	token, err := NewAdminToken("secret", time.Hour)
	require.NoError(t, err)

	claims, err := Parse(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.Equal(t, "admin", claims.Subject)
}

func TestParse_Rejects(t *testing.T) {
	valid, err := NewAdminToken("secret", time.Hour)
	require.NoError(t, err)

	expired, err := NewAdminToken("secret", -time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  []string{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, err := foreign.SignedString([]byte("secret"))
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := Parse(valid, "other")
		assert.Error(t, err)
	})
	t.Run("expired", func(t *testing.T) {
		_, err := Parse(expired, "secret")
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})
	t.Run("wrong audience", func(t *testing.T) {
		_, err := Parse(foreignToken, "secret")
		assert.Error(t, err)
	})
	t.Run("garbage", func(t *testing.T) {
		_, err := Parse("not-a-token", "secret")
		assert.Error(t, err)
	})
}

func TestVerifyAdminPassword(t *testing.T) {
	hash, err := argon2id.CreateHash("hunter22", argon2id.DefaultParams)
	require.NoError(t, err)

	ok, err := VerifyAdminPassword("hunter22", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyAdminPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyAdminPassword("hunter22", "")
	assert.ErrorIs(t, err, ErrLoginDisabled)

	_, err = VerifyAdminPassword("hunter22", "not-a-hash")
	assert.Error(t, err)
}
