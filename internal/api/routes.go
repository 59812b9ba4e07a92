package api

import (
	"net/http"                           // HTTP status codes
	"traveltogether/internal/config"     // Application configuration
	"traveltogether/internal/domain"     // Role names
	"traveltogether/internal/middleware" // Auth, roles, rate limits
	"traveltogether/internal/service"    // Business rules

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// Deps are the collaborators shared by all handlers
type Deps struct {
	DB        *gorm.DB                // Database handle
	Redis     *redis.Client           // Optional, nil disables caching and revocation
	Config    *config.Config          // Application configuration
	Accounts  *service.AccountService // Registration, login, profiles
	Proposals *service.ProposalService
	Times     *service.TimeService
}

// RegisterRoutes mounts every route on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	issuer := TokenIssuer{Secret: cfg.JWTSecret, TTL: cfg.TokenTTL, Secure: cfg.IsProd}
	auth := middleware.JWTAuthMiddleware(cfg.JWTSecret, d.Redis)
	editorsOnly := middleware.RequireRole(d.DB, domain.RoleEditor, domain.RoleAdmin)

	r.GET("/healthz", HealthHandler(d.DB, d.Redis))

	// Auth routes, throttled per IP
	authLimit := middleware.NewRateLimiter(d.Redis, "auth", cfg.RateLimit).Handler()
	r.POST("/register", authLimit, RegisterHandler(d.Accounts, issuer, d.Redis)) // Registration endpoint
	r.POST("/login", authLimit, LoginHandler(d.Accounts, issuer))                // Login endpoint
	r.GET("/logout", auth, LogoutHandler(d.Redis))                               // Logout endpoint

	// Scanner routes authenticate with the shared API key instead of a token
	scanner := r.Group("/time")
	scanner.Use(middleware.NewRateLimiter(d.Redis, "rfid", cfg.RateLimit).Handler(), middleware.APIKey(cfg.RFIDAPIKey))
	scanner.POST("/start_by_rfid", TagTimerHandler(d.Times.StartByTag, "Timer started.", d.Redis))
	scanner.POST("/stop_by_rfid", TagTimerHandler(d.Times.StopByTag, "Timer stopped.", d.Redis))

	// Everything below requires a logged-in user
	user := r.Group("/")
	user.Use(auth)

	user.GET("/profile/:id", ProfileHandler(d.Accounts))
	user.POST("/profile/edit", UpdateProfileHandler(d.Accounts))
	user.POST("/profile/:id/set_rfid", SetRFIDHandler(d.Accounts, d.Redis))
	user.POST("/profile/:id/set_role", SetRoleHandler(d.Accounts, d.Redis))
	user.GET("/users", editorsOnly, ListUsersHandler(d.DB, d.Redis))

	user.GET("/proposals", ListProposalsHandler(d.Proposals))
	user.POST("/proposal/new", CreateProposalHandler(d.Proposals))
	user.GET("/proposal/:id", ProposalDetailHandler(d.Proposals))
	user.GET("/proposal/:id/join", JoinHandler(d.Proposals))
	user.GET("/proposal/:id/leave", LeaveHandler(d.Proposals))
	user.POST("/proposal/:id/edit", UpdateProposalHandler(d.Proposals))
	user.POST("/proposal/:id/message", PostMessageHandler(d.Proposals))
	user.POST("/proposal/:id/meetup", AddMeetupHandler(d.Proposals))
	user.POST("/proposal/:id/finalize", TransitionHandler(d.Proposals.Finalize, "Trip proposal finalized."))
	user.POST("/proposal/:id/cancel", TransitionHandler(d.Proposals.Cancel, "Trip proposal cancelled."))
	user.POST("/proposal/:id/close-to-new-participants",
		TransitionHandler(d.Proposals.CloseToNewParticipants, "Proposal closed to new participants."))
	user.POST("/proposal/:id/reopen", TransitionHandler(d.Proposals.Reopen, "Proposal reopened to new participants."))
	user.POST("/proposal/:id/delete", DeleteProposalHandler(d.Proposals))
	user.POST("/proposal/:id/grant-edit/:user_id", GrantEditHandler(d.Proposals))

	user.POST("/time/start", StartTimerHandler(d.Times, d.Redis))
	user.POST("/time/stop", StopTimerHandler(d.Times, d.Redis))
	user.GET("/time/status", TimerStatusHandler(d.Times))
	user.GET("/time/weekly", WeeklyHandler(d.Times, d.Accounts, d.Redis, cfg.WeeksShown))
	user.POST("/time/adjustments", editorsOnly, SetAdjustmentHandler(d.Times, d.Redis))
	user.DELETE("/time/adjustments/:user_id/:date", editorsOnly, DeleteAdjustmentHandler(d.Times, d.Redis))
}

// HealthHandler reports database and cache reachability
func HealthHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		status := gin.H{"database": "ok", "redis": "disabled"}
		code := http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
		if rdb != nil {
			status["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				status["redis"] = "unavailable" // Cache is optional, stay healthy
			}
		}
		c.JSON(code, status)
	}
}
