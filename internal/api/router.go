package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/activities"
	"github.com/buildx-app/backend/internal/app"
	iauth "github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/handlers"
	"github.com/buildx-app/backend/internal/middleware"
	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/internal/storage"
)

// Dependencies carries the constructed services the router mounts.
// Store is optional; upload routes are skipped when it is nil.
type Dependencies struct {
	Auth       *services.AuthService
	Members    *services.MemberService
	Onboarding *services.OnboardingService
	Store      *storage.Store
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(db *gorm.DB, tokens *iauth.TokenService, cfg *app.Config, deps Dependencies) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if deps.Auth == nil || deps.Members == nil || deps.Onboarding == nil {
		return nil, fmt.Errorf("auth, member and onboarding services must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())

	// Health endpoints (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
		r.GET("/health/ready", handlers.Readiness(db))
	}

	authHandler := handlers.NewAuthHandler(deps.Auth)
	memberHandler := handlers.NewMemberHandler(deps.Members)
	onboardingHandler := handlers.NewOnboardingHandler(deps.Onboarding)

	// Credential-bearing routes get a tighter rate limit than the rest
	// of the API: 30 requests/minute per IP+path.
	authLimit := middleware.RateLimit(30, time.Minute)

	// Public auth routes
	auth := r.Group("/api/auth", authLimit)
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/google", authHandler.GoogleSignIn)
		auth.GET("/google/url", authHandler.GoogleAuthURL)
		auth.POST("/google/callback", authHandler.GoogleCallback)
		auth.GET("/microsoft/url", authHandler.MicrosoftAuthURL)
		auth.POST("/microsoft/callback", authHandler.MicrosoftCallback)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/verify-otp", authHandler.VerifyResetOTP)
		auth.POST("/reset-password", authHandler.ResetPassword)
	}

	// Public onboarding routes; every step re-verifies its own proof
	// (invitation token, OTP or onboarding token).
	onboarding := r.Group("/api/onboarding", authLimit)
	{
		onboarding.POST("/send-otp", onboardingHandler.SendOTP)
		onboarding.POST("/verify-otp", onboardingHandler.VerifyOTP)
		onboarding.POST("/set-password", onboardingHandler.SetPassword)
		onboarding.POST("/personal-details", onboardingHandler.SavePersonalDetails)
		onboarding.POST("/confirm", onboardingHandler.ConfirmDetails)
	}

	requireAuth := middleware.Auth(tokens)

	// Admin member management
	members := r.Group("/api/admin/members")
	members.Use(requireAuth, middleware.RequireActivity(db, activities.ManageMembers))
	{
		members.POST("/invite", memberHandler.Invite)
		members.GET("", memberHandler.List)
		members.GET("/roles", memberHandler.ListRoles)
		members.GET("/roles/:role/activities", memberHandler.ListActivities)
		members.GET("/:id", memberHandler.Get)
		members.DELETE("/:id/invitation", memberHandler.WithdrawInvitation)
		members.POST("/:id/resend-invitation", memberHandler.ResendInvitation)
		members.PATCH("/:id/status", memberHandler.ToggleActive)
		members.PATCH("/:id/access", memberHandler.UpdateAccess)
		members.POST("/:id/reset-password", memberHandler.ResetPassword)
	}

	// Media uploads
	if deps.Store != nil {
		uploadHandler := handlers.NewUploadHandler(deps.Store)
		uploads := r.Group("/api/uploads", requireAuth)
		{
			uploads.POST("/image", uploadHandler.UploadImage)
			uploads.POST("/document", uploadHandler.UploadDocument)
			uploads.DELETE("/*key", uploadHandler.Delete)
		}
	}

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
