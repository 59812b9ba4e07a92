package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestJWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT(42, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "42", claims.Subject)
}

func TestJWT_RejectsForeignIssuer(t *testing.T) {
	claims := Claims{UserID: 1, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWT_RequiresAccount(t *testing.T) {
	token, err := GenerateJWT(0, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWT_WrongSecret(t *testing.T) {
	token, err := GenerateJWT(1, "secret", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	token, err := GenerateJWT(1, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.Error(t, err)
}

func TestCache_SetGetDelete(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()

	type payload struct {
		Total int `json:"total"`
	}
	require.NoError(t, SetCache(ctx, rdb, "timesheet:user:1:weeks:4", payload{Total: 90}, time.Minute))

	var got payload
	found, err := GetCache(ctx, rdb, "timesheet:user:1:weeks:4", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 90, got.Total)

	require.NoError(t, DeletePrefix(ctx, rdb, "timesheet:user:1:"))
	found, err = GetCache(ctx, rdb, "timesheet:user:1:weeks:4", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_NilClient(t *testing.T) {
	ctx := context.Background()
	var dest map[string]any

	found, err := GetCache(ctx, nil, "k", &dest)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetCache(ctx, nil, "k", 1, time.Second))
	assert.NoError(t, DeleteCache(ctx, nil, "k"))
}

func TestRevokeToken(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()

	token, err := GenerateJWT(7, "secret", time.Hour)
	require.NoError(t, err)
	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)

	revoked, err := IsTokenRevoked(ctx, rdb, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, RevokeToken(ctx, rdb, claims))
	revoked, err = IsTokenRevoked(ctx, rdb, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Hour)
	revoked, err = IsTokenRevoked(ctx, rdb, claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)
}
