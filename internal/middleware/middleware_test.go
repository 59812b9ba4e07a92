package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traveltogether/internal/db"
	"traveltogether/internal/domain"
	"traveltogether/internal/utils"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func whoami(c *gin.Context) {
	id, _ := UserID(c)
	c.JSON(http.StatusOK, gin.H{"user_id": id, "role": c.GetString(RoleKey)})
}

func TestJWTAuthMiddleware(t *testing.T) {
	_, rdb := newRedis(t)
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(secret, rdb), whoami)

	token, err := utils.GenerateJWT(5, secret, time.Hour)
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"user_id":5`)
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged, err := utils.GenerateJWT(5, "other", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+forged)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("revoked", func(t *testing.T) {
		claims, err := utils.ParseJWT(token, secret)
		require.NoError(t, err)
		require.NoError(t, utils.RevokeToken(context.Background(), rdb, claims))

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestJWTAuthMiddleware_RedisDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	r := gin.New()
	r.GET("/me", JWTAuthMiddleware(secret, rdb), whoami)

	token, err := utils.GenerateJWT(5, secret, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRole(t *testing.T) {
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "app.db"), false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	user := &domain.User{Email: "u@example.com", Password: "x", Role: domain.RoleUser}
	editor := &domain.User{Email: "e@example.com", Password: "x", Role: domain.RoleEditor}
	require.NoError(t, gdb.Create(user).Error)
	require.NoError(t, gdb.Create(editor).Error)

	r := gin.New()
	r.GET("/users", JWTAuthMiddleware(secret, nil), RequireRole(gdb, domain.RoleEditor, domain.RoleAdmin), whoami)

	call := func(id uint) *httptest.ResponseRecorder {
		token, err := utils.GenerateJWT(id, secret, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusForbidden, call(user.ID).Code)
	w := call(editor.ID)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"editor"`)
	assert.Equal(t, http.StatusUnauthorized, call(999).Code)
}

func TestAPIKey(t *testing.T) {
	r := gin.New()
	r.POST("/scan", APIKey("k3y"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/scan", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/scan", nil)
	req.Header.Set(APIKeyHeader, "k3y")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	open := gin.New()
	open.POST("/scan", APIKey(""), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scan", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func rateLimited(t *testing.T, rdb *redis.Client) {
	t.Helper()
	r := gin.New()
	r.POST("/login", NewRateLimiter(rdb, "auth", 2).Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes[i] = w.Code
		if w.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_Redis(t *testing.T) {
	_, rdb := newRedis(t)
	rateLimited(t, rdb)
}

func TestRateLimiter_Local(t *testing.T) {
	rateLimited(t, nil)
}

func TestRateLimiter_FallsBackWhenRedisFails(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	rateLimited(t, rdb)
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(nil, "auth", 2)
	rl.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		allowed, _ := rl.allowLocal("ratelimit:auth:ip:10.0.0." + strconv.Itoa(i))
		require.True(t, allowed)
	}
	assert.Len(t, rl.fallback, 100)

	// An exhausted client stays limited until its bucket refills
	key := "ratelimit:auth:ip:10.0.0.1"
	allowed, _ := rl.allowLocal(key)
	require.True(t, allowed)
	allowed, _ = rl.allowLocal(key)
	assert.False(t, allowed)

	now = now.Add(time.Minute)
	allowed, _ = rl.allowLocal("ratelimit:auth:ip:10.0.1.1")
	require.True(t, allowed)
	assert.Len(t, rl.fallback, 1)

	allowed, _ = rl.allowLocal(key)
	assert.True(t, allowed)
}
