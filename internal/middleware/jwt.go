package middleware

import (
	"net/http"                      // HTTP status codes
	"strings"                       // String manipulation
	"traveltogether/internal/utils" // JWT utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client for the revocation list
	"github.com/sirupsen/logrus"   // Logging library
)

// TokenCookie is the cookie that carries the session token for browser clients
const TokenCookie = "token"

// Context keys set by JWTAuthMiddleware
const (
	UserIDKey = "userID"
	ClaimsKey = "claims"
)

// JWTAuthMiddleware validates the token from the Authorization header or the
// session cookie, rejects revoked tokens and stores the caller in the context
func JWTAuthMiddleware(secret string, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c) // Header first, cookie second
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in."})
			return
		}
		claims, err := utils.ParseJWT(tokenStr, secret) // Parse the JWT token
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		revoked, err := utils.IsTokenRevoked(c.Request.Context(), rdb, claims.ID)
		if err != nil {
			// Unreachable Redis: the signed token is accepted
			logrus.WithError(err).Warn("Revocation check failed")
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(UserIDKey, claims.UserID) // Store userID in context
		c.Set(ClaimsKey, claims)        // Kept for logout
		c.Next()                        // Proceed to the next handler
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization") // Get Authorization header
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil {
		return cookie
	}
	return ""
}

// UserID returns the authenticated caller set by JWTAuthMiddleware
func UserID(c *gin.Context) (uint, bool) {
	id, ok := c.Get(UserIDKey)
	if !ok {
		return 0, false
	}
	uid, ok := id.(uint)
	return uid, ok
}

// Claims returns the parsed token of the caller
func Claims(c *gin.Context) *utils.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
