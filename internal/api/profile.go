package api

import (
	"net/http"                        // HTTP status codes
	"traveltogether/internal/service" // Account rules

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// ProfileRequest is the body of the profile edit form
type ProfileRequest struct {
	Alias       string `form:"alias" json:"alias"`             // Display alias
	Description string `form:"description" json:"description"` // About me
}

// RFIDRequest binds or clears a card
type RFIDRequest struct {
	RFID string `form:"rfid" json:"rfid"` // Empty clears the binding
}

// RoleRequest changes an account role
type RoleRequest struct {
	Role string `form:"role" json:"role" binding:"required"` // user or editor
}

// ProfileHandler shows an account with its active and past proposals
func ProfileHandler(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := idParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		profile, err := accounts.Profile(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// UpdateProfileHandler edits the caller's alias and bio
func UpdateProfileHandler(accounts *service.AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var req ProfileRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := accounts.UpdateProfile(c.Request.Context(), userID, req.Alias, req.Description)
		if err != nil {
			respondError(c, err)
			return
		}
		respond(c, http.StatusOK, "Profile updated.", gin.H{"user": user})
	}
}

// SetRFIDHandler binds a card to an account
func SetRFIDHandler(accounts *service.AccountService, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		targetID, err := idParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var req RFIDRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := accounts.SetRFID(c.Request.Context(), userID, targetID, req.RFID)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUsers(c.Request.Context(), rdb)
		msg := "RFID card saved."
		if user.RFID == nil {
			msg = "RFID card removed."
		}
		respond(c, http.StatusOK, msg, gin.H{"user": user})
	}
}

// SetRoleHandler changes the role of an account
func SetRoleHandler(accounts *service.AccountService, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		targetID, err := idParam(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var req RoleRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be either user or editor."})
			return
		}
		user, err := accounts.SetRole(c.Request.Context(), userID, targetID, req.Role)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUsers(c.Request.Context(), rdb)
		respond(c, http.StatusOK, "Role updated.", gin.H{"user": user})
	}
}
