package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/api"
	"github.com/buildx-app/backend/internal/app"
	"github.com/buildx-app/backend/internal/app/maintenance"
	iauth "github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/auth/providers"
	"github.com/buildx-app/backend/internal/database"
	"github.com/buildx-app/backend/internal/services"
	"github.com/buildx-app/backend/internal/storage"
	"github.com/buildx-app/backend/pkg/logger"
	"github.com/buildx-app/backend/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("buildx-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	generated, err := app.ApplyRuntimeDefaults(cfg)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")
	for key := range generated {
		log.Info("generated runtime secret", zap.String("key", key))
	}

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	tokens, err := iauth.NewTokenService(iauth.TokenConfig{
		GeneralSecret: cfg.Auth.JWT.GeneralSecret,
		AccessSecret:  cfg.Auth.JWT.AccessSecret,
		RefreshSecret: cfg.Auth.JWT.RefreshSecret,
		ResetSecret:   cfg.Auth.JWT.ResetSecret,
		Issuer:        cfg.Auth.JWT.Issuer,
		AccessTTL:     cfg.Auth.JWT.AccessTTL,
		RefreshTTL:    cfg.Auth.JWT.RefreshTTL,
		ResetTTL:      cfg.Auth.JWT.ResetTTL,
		InvitationTTL: cfg.Auth.JWT.InvitationTTL,
		OnboardingTTL: cfg.Auth.JWT.OnboardingTTL,
	})
	if err != nil {
		return fmt.Errorf("initialise token service: %w", err)
	}

	mailer, err := mail.NewTemplateMailer(mail.Settings{
		Enabled:  cfg.Email.Enabled,
		APIURL:   cfg.Email.APIURL,
		APIKey:   cfg.Email.APIKey,
		From:     cfg.Email.From,
		FromName: cfg.Email.FromName,
		Timeout:  cfg.Email.Timeout,
	})
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}
	if !cfg.Email.Enabled {
		log.Warn("outbound email disabled; invitation and reset flows cannot deliver codes")
	}

	otpSvc, err := services.NewOTPService(db)
	if err != nil {
		return fmt.Errorf("initialise otp service: %w", err)
	}

	templates := services.EmailTemplates{
		Invitation:    cfg.Email.Templates.Invitation,
		OnboardingOTP: cfg.Email.Templates.OnboardingOTP,
		PasswordReset: cfg.Email.Templates.PasswordReset,
	}

	memberSvc, err := services.NewMemberService(db, tokens, otpSvc, mailer,
		services.WithInviteURL(cfg.Invites.BaseURL),
		services.WithSenderName(cfg.Invites.SenderName),
		services.WithMemberTemplates(templates),
	)
	if err != nil {
		return fmt.Errorf("initialise member service: %w", err)
	}

	onboardingSvc, err := services.NewOnboardingService(db, tokens, otpSvc, mailer,
		services.WithOnboardingTemplates(templates),
		services.WithOnboardingPasswordPolicy(cfg.Auth.Password.MinLength),
	)
	if err != nil {
		return fmt.Errorf("initialise onboarding service: %w", err)
	}

	authOpts := []services.AuthOption{
		services.WithAuthTemplates(templates),
		services.WithAuthPasswordPolicy(cfg.Auth.Password.MinLength),
	}
	if cfg.Auth.Google.Enabled {
		google, providerErr := providers.NewGoogleProvider(providers.GoogleConfig{
			ClientID:     cfg.Auth.Google.ClientID,
			ClientSecret: cfg.Auth.Google.ClientSecret,
			RedirectURL:  cfg.Auth.Google.RedirectURL,
		}, providers.GoogleOptions{})
		if providerErr != nil {
			return fmt.Errorf("initialise google provider: %w", providerErr)
		}
		authOpts = append(authOpts, services.WithGoogleProvider(google))
	}
	if cfg.Auth.Microsoft.Enabled {
		microsoft, providerErr := providers.NewMicrosoftProvider(providers.MicrosoftConfig{
			ClientID:     cfg.Auth.Microsoft.ClientID,
			ClientSecret: cfg.Auth.Microsoft.ClientSecret,
			RedirectURL:  cfg.Auth.Microsoft.RedirectURL,
			TenantID:     cfg.Auth.Microsoft.Tenant,
		}, providers.MicrosoftOptions{})
		if providerErr != nil {
			return fmt.Errorf("initialise microsoft provider: %w", providerErr)
		}
		authOpts = append(authOpts, services.WithMicrosoftProvider(microsoft))
	}

	authSvc, err := services.NewAuthService(db, tokens, otpSvc, mailer, authOpts...)
	if err != nil {
		return fmt.Errorf("initialise auth service: %w", err)
	}

	var store *storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.New(ctx, storage.Config{
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Endpoint:        cfg.Storage.Endpoint,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialise object storage: %w", err)
		}
	}

	cleaner := maintenance.NewCleaner(otpSvc, maintenance.WithSchedule(cfg.Jobs.OTPPurgeSchedule))
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(db, tokens, cfg, api.Dependencies{
		Auth:       authSvc,
		Members:    memberSvc,
		Onboarding: onboardingSvc,
		Store:      store,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, database.SeedConfig{
		AdminEmail:    cfg.Seed.AdminEmail,
		AdminPassword: cfg.Seed.AdminPassword,
		AdminFullname: cfg.Seed.AdminFullname,
	}); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql", "mariadb":
		dbCfg.Driver = "mysql"
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
