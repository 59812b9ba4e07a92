package api

import (
	"context"                        // Context for Redis operations
	"net/http"                       // HTTP status codes
	"strconv"                        // String conversion
	"time"                           // Time durations
	"traveltogether/internal/domain" // Importing domain models
	"traveltogether/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// usersCachePrefix namespaces the cached account list pages
const usersCachePrefix = "admin:users:"

// UserAdminResponse represents the user information shown to editors
type UserAdminResponse struct {
	ID    uint    `json:"id"`    // User ID
	Email string  `json:"email"` // E-mail
	Alias *string `json:"alias"` // Display alias
	Role  string  `json:"role"`  // User role
	RFID  *string `json:"rfid"`  // Bound RFID tag
}

type usersPage struct {
	Users      []UserAdminResponse `json:"users"`       // List of users
	Page       int                 `json:"page"`        // Current page
	PageSize   int                 `json:"page_size"`   // Page size
	Total      int64               `json:"total"`       // Total number of users
	TotalPages int                 `json:"total_pages"` // Total pages
}

// ListUsersHandler returns all accounts with their role and RFID binding
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page := 1      // Default page number
		pageSize := 50 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// Check and set page size within limits
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 200 {
				pageSize = v // Set page size
			}
		}
		cacheKey := usersCachePrefix + "page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		var cached usersPage
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"users":       cached.Users,      // List of users
				"page":        cached.Page,       // Current page
				"page_size":   cached.PageSize,   // Page size
				"total":       cached.Total,      // Total number of users
				"total_pages": cached.TotalPages, // Total pages
				"cached":      true,              // Indicate response is from cache
			})
			return
		}

		resp, err := loadUsersPage(ctx, db, page, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the page for 60 seconds
		c.JSON(http.StatusOK, gin.H{
			"users":       resp.Users,
			"page":        resp.Page,
			"page_size":   resp.PageSize,
			"total":       resp.Total,
			"total_pages": resp.TotalPages,
			"cached":      false,
		})
	}
}

// invalidateUsers drops every cached page of the account list
func invalidateUsers(ctx context.Context, rdb *redis.Client) {
	if err := utils.DeletePrefix(ctx, rdb, usersCachePrefix); err != nil {
		logrus.WithFields(logrus.Fields{
			"prefix": usersCachePrefix,
			"error":  err.Error(),
		}).Warn("Failed to invalidate users cache")
	}
}

func loadUsersPage(ctx context.Context, db *gorm.DB, page, pageSize int) (*usersPage, error) {
	db = db.WithContext(ctx)
	var total int64 // Total user count
	if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, err
	}
	var users []domain.User
	if err := db.Order("id ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, err
	}
	resp := &usersPage{
		Users:      make([]UserAdminResponse, len(users)),
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (int(total) + pageSize - 1) / pageSize,
	}
	for i, u := range users {
		resp.Users[i] = UserAdminResponse{ID: u.ID, Email: u.Email, Alias: u.Alias, Role: u.Role, RFID: u.RFID}
	}
	return resp, nil
}
