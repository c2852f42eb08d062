package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the BuildX backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Email      EmailConfig      `mapstructure:"email"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Invites    InviteConfig     `mapstructure:"invites"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Jobs       JobsConfig       `mapstructure:"jobs"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	JWT       JWTSettings    `mapstructure:"jwt"`
	Google    OAuthSettings  `mapstructure:"google"`
	Microsoft OAuthSettings  `mapstructure:"microsoft"`
	Password  PasswordPolicy `mapstructure:"password"`
}

// JWTSettings configures the four token-signing secrets and lifetimes.
// Each token class signs with its own secret.
type JWTSettings struct {
	GeneralSecret string `mapstructure:"general_secret"`
	AccessSecret  string `mapstructure:"access_secret"`
	RefreshSecret string `mapstructure:"refresh_secret"`
	ResetSecret   string `mapstructure:"reset_secret"`

	Issuer string `mapstructure:"issuer"`

	AccessTTL     time.Duration `mapstructure:"access_token_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	ResetTTL      time.Duration `mapstructure:"reset_token_ttl"`
	InvitationTTL time.Duration `mapstructure:"invitation_token_ttl"`
	OnboardingTTL time.Duration `mapstructure:"onboarding_token_ttl"`
}

// OAuthSettings configures one federated identity provider.
type OAuthSettings struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	Tenant       string `mapstructure:"tenant"`
}

// PasswordPolicy carries password acceptance rules.
type PasswordPolicy struct {
	MinLength int `mapstructure:"min_length"`
}

// EmailConfig captures outbound email settings for the template API.
type EmailConfig struct {
	Enabled   bool           `mapstructure:"enabled"`
	APIURL    string         `mapstructure:"api_url"`
	APIKey    string         `mapstructure:"api_key"`
	From      string         `mapstructure:"from"`
	FromName  string         `mapstructure:"from_name"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	Templates EmailTemplates `mapstructure:"templates"`
}

// EmailTemplates lists the per-flow template identifiers.
type EmailTemplates struct {
	Invitation    string `mapstructure:"invitation"`
	OnboardingOTP string `mapstructure:"onboarding_otp"`
	PasswordReset string `mapstructure:"password_reset"`
}

// StorageConfig configures the S3-compatible media store.
type StorageConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Endpoint        string `mapstructure:"endpoint"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// InviteConfig configures invitation link construction.
type InviteConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	SenderName string `mapstructure:"sender_name"`
}

// SeedConfig describes the bootstrap administrator account.
type SeedConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
	AdminFullname string `mapstructure:"admin_fullname"`
}

// JobsConfig configures background maintenance jobs.
type JobsConfig struct {
	OTPPurgeSchedule string `mapstructure:"otp_purge_schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("BUILDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/buildx.sqlite")

	v.SetDefault("auth.jwt.issuer", "buildx")
	v.SetDefault("auth.jwt.access_token_ttl", "24h")
	v.SetDefault("auth.jwt.refresh_token_ttl", "168h") // 7 days
	v.SetDefault("auth.jwt.reset_token_ttl", "5m")
	v.SetDefault("auth.jwt.invitation_token_ttl", "168h") // 7 days
	v.SetDefault("auth.jwt.onboarding_token_ttl", "1h")

	v.SetDefault("auth.google.enabled", false)
	v.SetDefault("auth.microsoft.enabled", false)
	v.SetDefault("auth.microsoft.tenant", "common")
	v.SetDefault("auth.password.min_length", 8)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.api_url", "https://api.zeptomail.com/v1.1/email/template")
	v.SetDefault("email.from_name", "BuildX")
	v.SetDefault("email.timeout", "10s")

	v.SetDefault("storage.enabled", false)

	v.SetDefault("invites.sender_name", "The Admin Team")

	v.SetDefault("jobs.otp_purge_schedule", "*/10 * * * *")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
