package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "general-secret", cfg.Auth.JWT.GeneralSecret)
	require.Equal(t, "reset-secret", cfg.Auth.JWT.ResetSecret)
	require.Equal(t, "buildx-staging", cfg.Auth.JWT.Issuer)
	require.Equal(t, 12*time.Hour, cfg.Auth.JWT.AccessTTL)
	// Unset TTLs keep their defaults.
	require.Equal(t, 7*24*time.Hour, cfg.Auth.JWT.RefreshTTL)
	require.Equal(t, 5*time.Minute, cfg.Auth.JWT.ResetTTL)
	require.Equal(t, time.Hour, cfg.Auth.JWT.OnboardingTTL)

	require.True(t, cfg.Auth.Google.Enabled)
	require.Equal(t, "google-client", cfg.Auth.Google.ClientID)
	require.True(t, cfg.Auth.Microsoft.Enabled)
	require.Equal(t, "contoso.onmicrosoft.com", cfg.Auth.Microsoft.Tenant)

	require.True(t, cfg.Email.Enabled)
	require.Equal(t, "https://api.zeptomail.com/v1.1/email/template", cfg.Email.APIURL)
	require.Equal(t, "tmpl-invite", cfg.Email.Templates.Invitation)
	require.Equal(t, "tmpl-otp", cfg.Email.Templates.OnboardingOTP)
	require.Equal(t, "tmpl-reset", cfg.Email.Templates.PasswordReset)
	require.Equal(t, 10*time.Second, cfg.Email.Timeout)

	require.True(t, cfg.Storage.Enabled)
	require.Equal(t, "buildx-media", cfg.Storage.Bucket)
	require.Equal(t, "https://media.example.com", cfg.Storage.PublicBaseURL)

	require.Equal(t, "https://app.example.com/auth/create-password", cfg.Invites.BaseURL)
	require.Equal(t, "Site Admin", cfg.Invites.SenderName)

	require.Equal(t, "admin@example.com", cfg.Seed.AdminEmail)
	require.Equal(t, "*/5 * * * *", cfg.Jobs.OTPPurgeSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "buildx", cfg.Auth.JWT.Issuer)
	require.Equal(t, 24*time.Hour, cfg.Auth.JWT.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.JWT.InvitationTTL)
	require.Equal(t, "common", cfg.Auth.Microsoft.Tenant)
	require.Equal(t, 8, cfg.Auth.Password.MinLength)
	require.False(t, cfg.Email.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.Equal(t, "*/10 * * * *", cfg.Jobs.OTPPurgeSchedule)
}

func TestApplyRuntimeDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Auth.JWT.AccessSecret = "pinned"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.True(t, generated["auth.jwt.general_secret"])
	require.False(t, generated["auth.jwt.access_secret"])
	require.True(t, generated["auth.jwt.refresh_secret"])
	require.True(t, generated["auth.jwt.reset_secret"])

	require.Equal(t, "pinned", cfg.Auth.JWT.AccessSecret)
	require.NotEmpty(t, cfg.Auth.JWT.GeneralSecret)
	require.NotEmpty(t, cfg.Auth.JWT.RefreshSecret)
	require.NotEmpty(t, cfg.Auth.JWT.ResetSecret)
	require.NotEqual(t, cfg.Auth.JWT.GeneralSecret, cfg.Auth.JWT.ResetSecret)

	// A second pass generates nothing new.
	generated, err = ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
}

func TestConfigureLogging(t *testing.T) {
	require.NoError(t, ConfigureLogging(""))
	require.NoError(t, ConfigureLogging("debug"))
	// Unknown levels fall back to info rather than failing start-up.
	require.NoError(t, ConfigureLogging("not-a-level"))
}
