package api

import (
	"net/http"                           // HTTP status codes
	"time"                               // Token lifetime
	"traveltogether/internal/domain"     // Importing domain models
	"traveltogether/internal/middleware" // Session cookie name and claims
	"traveltogether/internal/service"    // Account rules
	"traveltogether/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Email    string `form:"email" json:"email"`       // Account e-mail
	Password string `form:"password" json:"password"` // Plain-text password
}

// AuthResponse is returned after a successful register or login
type AuthResponse struct {
	Message string       `json:"message"` // Flash message
	Token   string       `json:"token"`   // JWT token
	User    *domain.User `json:"user"`    // Logged-in account
}

// TokenIssuer signs session tokens and writes the session cookie
type TokenIssuer struct {
	Secret string        // HMAC secret
	TTL    time.Duration // Token lifetime
	Secure bool          // Send the cookie over HTTPS only
}

func (ti TokenIssuer) issue(c *gin.Context, user *domain.User) (string, error) {
	token, err := utils.GenerateJWT(user.ID, ti.Secret, ti.TTL)
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.TokenCookie, token, int(ti.TTL.Seconds()), "/", "", ti.Secure, true)
	return token, nil
}

// RegisterHandler creates an account and logs it in
func RegisterHandler(accounts *service.AccountService, issuer TokenIssuer, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CredentialsRequest // Form or JSON body
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := accounts.Register(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		token, err := issuer.issue(c, user)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUsers(c.Request.Context(), rdb) // User list changed
		c.JSON(http.StatusCreated, AuthResponse{Message: "Registration successful.", Token: token, User: user})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(accounts *service.AccountService, issuer TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CredentialsRequest // Form or JSON body
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			logrus.WithField("path", c.FullPath()).Warn("Login failed")
			respondError(c, err)
			return
		}
		token, err := issuer.issue(c, user)
		if err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("user_id", user.ID).Info("User logged in")
		c.JSON(http.StatusOK, AuthResponse{Message: "Login successful.", Token: token, User: user})
	}
}

// LogoutHandler revokes the presented token and clears the session cookie
func LogoutHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.Claims(c)
		if err := utils.RevokeToken(c.Request.Context(), rdb, claims); err != nil {
			logrus.WithError(err).Error("Failed to revoke token")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
			return
		}
		c.SetCookie(middleware.TokenCookie, "", -1, "/", "", false, true)
		if claims != nil {
			logrus.WithField("user_id", claims.UserID).Info("User logged out")
		}
		respond(c, http.StatusOK, "You have been logged out.", nil)
	}
}
