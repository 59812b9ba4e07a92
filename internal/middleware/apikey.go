package middleware

import (
	"crypto/subtle" // Constant-time comparison
	"net/http"      // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// APIKeyHeader carries the shared key of the RFID scanners
const APIKeyHeader = "X-API-Key"

// APIKey rejects requests whose X-API-Key header does not match key.
// An empty key disables the check.
func APIKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Invalid API key."})
			return
		}
		c.Next()
	}
}
