package api

import (
	"errors"                             // Error inspection
	"net/http"                           // HTTP status codes
	"strconv"                            // Path parameter parsing
	"traveltogether/internal/domain"     // Error taxonomy
	"traveltogether/internal/middleware" // Authenticated caller

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps a domain error kind to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError answers with the user-facing message of err. Unexpected errors
// are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method, // HTTP method
			"path":   c.FullPath(),     // Route pattern
			"error":  err.Error(),      // Error message
		}).Error("Request failed")
		c.AbortWithStatusJSON(status, gin.H{"error": "Something went wrong"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": domain.ErrorMessage(err)})
}

// respond writes {"message": msg} merged with payload
func respond(c *gin.Context, status int, msg string, payload gin.H) {
	body := gin.H{"message": msg}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// idParam reads a numeric path parameter; malformed ids are treated as missing rows
func idParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		return 0, domain.NotFound("Not found.")
	}
	return uint(v), nil
}

// caller returns the authenticated account id
func caller(c *gin.Context) (uint, error) {
	uid, ok := middleware.UserID(c) // Set by JWTAuthMiddleware
	if !ok {
		return 0, domain.Auth("Please log in.")
	}
	return uid, nil
}
