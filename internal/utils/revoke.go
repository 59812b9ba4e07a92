package utils

import (
	"context" // Context for Redis operations
	"time"    // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

const revokedPrefix = "revoked:token:"

// RevokeToken stores the token ID until the token would have expired anyway
func RevokeToken(ctx context.Context, rdb *redis.Client, claims *Claims) error {
	if rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute // Fallback when the token carries no expiry
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil // Already expired
	}
	return rdb.Set(ctx, revokedPrefix+claims.ID, 1, ttl).Err()
}

// IsTokenRevoked reports whether the token ID was revoked by a logout
func IsTokenRevoked(ctx context.Context, rdb *redis.Client, tokenID string) (bool, error) {
	if rdb == nil || tokenID == "" {
		return false, nil
	}
	n, err := rdb.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
