package api

import (
	"context"                         // Context for Redis operations
	"fmt"                             // Cache keys
	"net/http"                        // HTTP status codes
	"strconv"                         // Query parsing
	"time"                            // Cache TTL
	"traveltogether/internal/domain"  // Importing domain models
	"traveltogether/internal/service" // Time tracking rules
	"traveltogether/internal/utils"   // Cache helpers

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// timesheetTTL bounds how stale a cached weekly view of a running timer gets
const timesheetTTL = 30 * time.Second

// TagRequest is the body sent by the RFID scanners
type TagRequest struct {
	RFID string `form:"rfid" json:"rfid"` // Scanned tag
}

// AdjustmentRequest overrides one day of tracked time
type AdjustmentRequest struct {
	UserID       uint   `form:"user_id" json:"user_id" binding:"required"` // Adjusted account
	Date         string `form:"date" json:"date" binding:"required"`       // YYYY-MM-DD
	TotalMinutes *int   `form:"total_minutes" json:"total_minutes"`        // Authoritative total
}

func timesheetPrefix(userID uint) string {
	return fmt.Sprintf("timesheet:user:%d:", userID)
}

// invalidateTimesheet drops every cached weekly view of the user
func invalidateTimesheet(ctx context.Context, rdb *redis.Client, userID uint) {
	if err := utils.DeletePrefix(ctx, rdb, timesheetPrefix(userID)); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("Failed to invalidate timesheet cache")
	}
}

// StartTimerHandler starts the caller's timer
func StartTimerHandler(times *service.TimeService, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		entry, err := times.Start(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateTimesheet(c.Request.Context(), rdb, userID)
		respond(c, http.StatusOK, "Timer started.", gin.H{"entry": entry})
	}
}

// StopTimerHandler stops the caller's timer
func StopTimerHandler(times *service.TimeService, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		entry, err := times.Stop(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateTimesheet(c.Request.Context(), rdb, userID)
		respond(c, http.StatusOK, "Timer stopped.", gin.H{"entry": entry})
	}
}

// TimerStatusHandler reports the running entry and today's total
func TimerStatusHandler(times *service.TimeService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		entry, err := times.Current(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		today, err := times.Today(ctx, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"running": entry != nil, // Whether a timer is open
			"entry":   entry,        // Open entry, null when stopped
			"today":   today,        // Today's total so far
		})
	}
}

// WeeklyHandler returns the caller's weekly overview; editors may pass
// user_id to view another account
func WeeklyHandler(times *service.TimeService, accounts *service.AccountService, rdb *redis.Client, defaultWeeks int) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		ctx := c.Request.Context()
		target := userID
		if raw := c.Query("user_id"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				respondError(c, domain.Validation("user_id must be a number."))
				return
			}
			target = uint(v)
		}
		if target != userID {
			viewer, err := accounts.Get(ctx, userID)
			if err != nil {
				respondError(c, err)
				return
			}
			if !viewer.IsEditor() {
				respondError(c, domain.Permission("You do not have permission to view this timesheet."))
				return
			}
		}
		weeks := defaultWeeks
		if raw := c.Query("weeks"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				respondError(c, domain.Validation("weeks must be a number."))
				return
			}
			weeks = v
		}
		weeks = max(0, min(weeks, service.MaxWeeks))

		cacheKey := fmt.Sprintf("%sweeks:%d", timesheetPrefix(target), weeks)
		var sheet service.Timesheet
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &sheet); err == nil && found {
			c.JSON(http.StatusOK, gin.H{"timesheet": sheet, "cached": true})
			return
		}
		fresh, err := times.Weekly(ctx, target, weeks)
		if err != nil {
			respondError(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, fresh, timesheetTTL)
		c.JSON(http.StatusOK, gin.H{"timesheet": fresh, "cached": false})
	}
}

// SetAdjustmentHandler stores a daily override
func SetAdjustmentHandler(times *service.TimeService, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		editorID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var req AdjustmentRequest
		if err := c.ShouldBind(&req); err != nil || req.TotalMinutes == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id, date and total_minutes are required."})
			return
		}
		adj, err := times.SetAdjustment(c.Request.Context(), editorID, req.UserID, req.Date, *req.TotalMinutes)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateTimesheet(c.Request.Context(), rdb, req.UserID)
		respond(c, http.StatusOK, "Adjustment saved.", gin.H{"adjustment": adj})
	}
}

// DeleteAdjustmentHandler removes a daily override
func DeleteAdjustmentHandler(times *service.TimeService, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		editorID, err := caller(c)
		if err != nil {
			respondError(c, err)
			return
		}
		userID, err := idParam(c, "user_id")
		if err != nil {
			respondError(c, err)
			return
		}
		if err := times.DeleteAdjustment(c.Request.Context(), editorID, userID, c.Param("date")); err != nil {
			respondError(c, err)
			return
		}
		invalidateTimesheet(c.Request.Context(), rdb, userID)
		respond(c, http.StatusOK, "Adjustment removed.", nil)
	}
}

// tagAction starts or stops a timer by RFID tag
type tagAction func(ctx context.Context, tag string) (*domain.User, *domain.TimeEntry, error)

// TagTimerHandler serves the scanner routes. Responses carry "status":"ok"
// so scanners can check a single field.
func TagTimerHandler(action tagAction, msg string, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TagRequest
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing RFID."})
			return
		}
		user, entry, err := action(c.Request.Context(), req.RFID)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateTimesheet(c.Request.Context(), rdb, user.ID)
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": msg,
			"user":    gin.H{"id": user.ID, "name": user.DisplayName()},
			"entry":   entry,
		})
	}
}
