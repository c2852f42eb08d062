package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/activities"
	"github.com/buildx-app/backend/internal/app"
	iauth "github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/pkg/mail"
)

type routerMailer struct{}

func (routerMailer) Send(context.Context, mail.Message) error { return nil }

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *iauth.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.OneTimeCode{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{
		GeneralSecret: "general-secret",
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		ResetSecret:   "reset-secret",
		Issuer:        "buildx-test",
	})
	require.NoError(t, err)

	otp, err := services.NewOTPService(db)
	require.NoError(t, err)
	mailer := routerMailer{}
	memberSvc, err := services.NewMemberService(db, tokens, otp, mailer)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(db, tokens, otp, mailer)
	require.NoError(t, err)
	onboardingSvc, err := services.NewOnboardingService(db, tokens, otp, mailer)
	require.NoError(t, err)

	cfg := &app.Config{}
	cfg.Monitoring.Health.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"

	router, err := NewRouter(db, tokens, cfg, Dependencies{
		Auth:       authSvc,
		Members:    memberSvc,
		Onboarding: onboardingSvc,
	})
	require.NoError(t, err)
	return router, db, tokens
}

func TestRouterPublicAndProtectedRoutes(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/health/ready", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Admin surface requires a bearer token.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/admin/members", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Login is public; an empty body fails validation, not auth.
	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/unknown", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRouterAdminAccessControl(t *testing.T) {
	router, db, tokens := newTestRouter(t)

	admin := &models.User{
		Email:      "admin@example.com",
		Fullname:   "Admin",
		Password:   "irrelevant",
		Role:       string(activities.RoleAdmin),
		Activities: []string{activities.AllAccess},
		Status:     models.StatusApproved,
		IsActive:   true,
	}
	require.NoError(t, db.Create(admin).Error)

	limited := &models.User{
		Email:      "pm@example.com",
		Fullname:   "PM",
		Password:   "irrelevant",
		Role:       string(activities.RoleProjectManager),
		Activities: []string{"View all requests"},
		Status:     models.StatusApproved,
		IsActive:   true,
	}
	require.NoError(t, db.Create(limited).Error)

	adminToken, err := tokens.IssueAccessToken(admin.ID, admin.Email, admin.Role)
	require.NoError(t, err)
	limitedToken, err := tokens.IssueAccessToken(limited.ID, limited.Email, limited.Role)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/admin/members", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/api/admin/members", nil)
	req.Header.Set("Authorization", "Bearer "+limitedToken)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	metricsRec := httptest.NewRecorder()
	metricsReq, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(metricsRec, metricsReq)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	require.Contains(t, metricsRec.Body.String(), "buildx_api_latency_seconds")
}
