package middleware

import (
	"net/http"                       // HTTP status codes
	"traveltogether/internal/domain" // Importing domain models

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// RoleKey holds the caller's role once RequireRole has loaded it
const RoleKey = "role"

// RequireRole checks the user's role from the database on each request so
// role changes take effect without a new login
func RequireRole(db *gorm.DB, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		userID, exists := UserID(c) // Set by JWTAuthMiddleware
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in."})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).First(&user, userID).Error; err != nil {
			// Token of a deleted account
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in."})
			return
		}
		if !allowed[user.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to view this page."})
			return
		}
		c.Set(RoleKey, user.Role)
		c.Next()
	}
}
