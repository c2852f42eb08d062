package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	iauth "github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/models"
)

func newTestTokens(t *testing.T) *iauth.TokenService {
	t.Helper()
	tokens, err := iauth.NewTokenService(iauth.TokenConfig{
		GeneralSecret: "general-secret",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
		Issuer:        "buildx-test",
	})
	require.NoError(t, err)
	return tokens
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTestTokens(t)

	r := gin.New()
	r.Use(Auth(tokens))
	r.GET("/private", func(c *gin.Context) {
		id := c.GetUint(CtxUserIDKey)
		c.JSON(http.StatusOK, gin.H{"id": id, "role": c.GetString(CtxRoleKey)})
	})

	// Missing header.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Garbage token.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	// Valid token.
	token, err := tokens.IssueAccessToken(42, "user@example.com", "AD")
	require.NoError(t, err)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"id":42`)
	require.Contains(t, w.Body.String(), `"role":"AD"`)
}

func TestAuthMiddlewareRejectsNonAccessTokens(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTestTokens(t)

	r := gin.New()
	r.Use(Auth(tokens))
	r.GET("/private", func(c *gin.Context) { c.Status(http.StatusOK) })

	// An invitation token signs with a different secret and must not
	// open the admin surface.
	invite, err := tokens.IssueInvitationToken("user@example.com")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+invite)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireActivity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := newTestTokens(t)
	db := openMiddlewareTestDB(t)

	admin := models.User{
		Email:      "admin@example.com",
		Fullname:   "Admin",
		Password:   "hash",
		Role:       "AD",
		Activities: datatypes.NewJSONSlice([]string{"ALL ACCESS"}),
		Status:     models.StatusApproved,
		IsActive:   true,
	}
	require.NoError(t, db.Create(&admin).Error)

	limited := models.User{
		Email:      "pm@example.com",
		Fullname:   "PM",
		Password:   "hash",
		Role:       "PM",
		Activities: datatypes.NewJSONSlice([]string{"View all requests"}),
		Status:     models.StatusApproved,
		IsActive:   true,
	}
	require.NoError(t, db.Create(&limited).Error)

	r := gin.New()
	r.Use(Auth(tokens))
	r.GET("/admin", RequireActivity(db, "Add/remove other users"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	serve := func(userID uint, email, role string) *httptest.ResponseRecorder {
		token, err := tokens.IssueAccessToken(userID, email, role)
		require.NoError(t, err)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, serve(admin.ID, admin.Email, admin.Role).Code)
	require.Equal(t, http.StatusForbidden, serve(limited.ID, limited.Email, limited.Role).Code)

	// Deactivation revokes access even with a live token.
	require.NoError(t, db.Model(&models.User{}).
		Where("id = ?", admin.ID).
		Update("is_active", false).Error)
	require.Equal(t, http.StatusForbidden, serve(admin.ID, admin.Email, admin.Role).Code)

	// Deleted accounts are unauthorized.
	require.NoError(t, db.Delete(&models.User{}, limited.ID).Error)
	require.Equal(t, http.StatusUnauthorized, serve(limited.ID, limited.Email, limited.Role).Code)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(CORS())
	r.GET("/resource", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	// Preflight request
	preflight := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/resource", nil)
	r.ServeHTTP(preflight, req)
	require.Equal(t, http.StatusNoContent, preflight.Code)
	require.Equal(t, "*", preflight.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), "GET")
	require.Contains(t, preflight.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	// Actual request inherits headers and proceeds
	w := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/resource", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, DefaultContentSecurityPolicy, w.Header().Get("Content-Security-Policy"))
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(2, time.Minute))
	r.GET("/limited", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimitWindowExpiry(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(1, 20*time.Millisecond))
	r.GET("/limited", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	time.Sleep(30 * time.Millisecond)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitSpawnsNoBackgroundGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		RateLimit(1, time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	require.LessOrEqual(t, runtime.NumGoroutine(), before+2)
}

func TestRecoveryMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	require.NotContains(t, w.Body.String(), "kaput")
}

func openMiddlewareTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.User{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
