package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/auth/providers"
	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/pkg/crypto"
	apperrors "github.com/buildx-app/backend/pkg/errors"
	"github.com/buildx-app/backend/pkg/logger"
	"github.com/buildx-app/backend/pkg/mail"
	"github.com/buildx-app/backend/pkg/metrics"
)

// AuthenticatedUser is the sanitized projection returned with tokens.
// The password hash never leaves the service.
type AuthenticatedUser struct {
	ID         uint      `json:"id"`
	Email      string    `json:"email"`
	Fullname   string    `json:"fullname"`
	Role       string    `json:"role"`
	Activities []string  `json:"activities"`
	Status     string    `json:"status"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TokenPair bundles freshly issued session credentials.
type TokenPair struct {
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	User         AuthenticatedUser `json:"user"`
}

// AuthOption customises AuthService behaviour.
type AuthOption func(*AuthService)

// WithAuthTemplates configures the mail template identifiers.
func WithAuthTemplates(templates EmailTemplates) AuthOption {
	return func(s *AuthService) {
		s.templates = templates
	}
}

// WithGoogleProvider wires the Google identity verifier.
func WithGoogleProvider(p *providers.GoogleProvider) AuthOption {
	return func(s *AuthService) {
		s.google = p
	}
}

// WithMicrosoftProvider wires the Microsoft identity verifier.
func WithMicrosoftProvider(p *providers.MicrosoftProvider) AuthOption {
	return func(s *AuthService) {
		s.microsoft = p
	}
}

// WithAuthPasswordPolicy overrides the minimum password length
// enforced on reset.
func WithAuthPasswordPolicy(min int) AuthOption {
	return func(s *AuthService) {
		if min > 0 {
			s.minPassword = min
		}
	}
}

// AuthService authenticates members with passwords or federated
// identities and drives the self-service password-reset flow.
type AuthService struct {
	db     *gorm.DB
	tokens *auth.TokenService
	otp    *OTPService
	mailer mail.Mailer

	google    *providers.GoogleProvider
	microsoft *providers.MicrosoftProvider

	templates   EmailTemplates
	minPassword int
	log         *zap.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(db *gorm.DB, tokens *auth.TokenService, otp *OTPService, mailer mail.Mailer, opts ...AuthOption) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if otp == nil {
		return nil, errors.New("auth service: otp service is required")
	}

	service := &AuthService{
		db:          db,
		tokens:      tokens,
		otp:         otp,
		mailer:      mailer,
		minPassword: MinPasswordLength,
		log:         logger.WithModule("auth"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Login authenticates an email/password pair. An unknown account, a
// deactivated account, and a wrong password all produce the same
// generic error so callers cannot probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive || !crypto.VerifyPassword(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("password", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues("password", "success").Inc()
	return pair, nil
}

// GoogleSignIn authenticates with a Google-issued ID token, typically
// obtained by a client-side sign-in widget.
func (s *AuthService) GoogleSignIn(ctx context.Context, idToken string) (*TokenPair, error) {
	if s.google == nil {
		return nil, apperrors.NewBadRequest("Google sign-in is not configured")
	}
	identity, err := s.google.VerifyIDToken(ctx, idToken)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials.WithInternal(err)
	}
	return s.federatedSignIn(ctx, "google", identity)
}

// GoogleAuthURL builds the Google authorization redirect URL.
func (s *AuthService) GoogleAuthURL(state string) (string, error) {
	if s.google == nil {
		return "", apperrors.NewBadRequest("Google sign-in is not configured")
	}
	return s.google.AuthURL(state)
}

// GoogleCallback completes the authorization-code flow for Google.
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*TokenPair, error) {
	if s.google == nil {
		return nil, apperrors.NewBadRequest("Google sign-in is not configured")
	}
	identity, err := s.google.Exchange(ctx, code)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("google", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials.WithInternal(err)
	}
	return s.federatedSignIn(ctx, "google", identity)
}

// MicrosoftAuthURL builds the Microsoft authorization redirect URL.
func (s *AuthService) MicrosoftAuthURL(state string) (string, error) {
	if s.microsoft == nil {
		return "", apperrors.NewBadRequest("Microsoft sign-in is not configured")
	}
	return s.microsoft.AuthURL(state)
}

// MicrosoftCallback completes the authorization-code flow for Microsoft.
func (s *AuthService) MicrosoftCallback(ctx context.Context, code string) (*TokenPair, error) {
	if s.microsoft == nil {
		return nil, apperrors.NewBadRequest("Microsoft sign-in is not configured")
	}
	identity, err := s.microsoft.Exchange(ctx, code)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("microsoft", "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials.WithInternal(err)
	}
	return s.federatedSignIn(ctx, "microsoft", identity)
}

// federatedSignIn matches a provider-asserted identity to a local
// account. Federated login never creates accounts; invitation is the
// only account-creation path.
func (s *AuthService) federatedSignIn(ctx context.Context, method string, identity providers.Identity) (*TokenPair, error) {
	if identity.Email == "" || !identity.EmailVerified {
		metrics.AuthAttempts.WithLabelValues(method, "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := s.findByEmail(ctx, identity.Email)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			metrics.AuthAttempts.WithLabelValues(method, "failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues(method, "failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, err
	}
	metrics.AuthAttempts.WithLabelValues(method, "success").Inc()
	return pair, nil
}

// ForgotPassword starts the self-service reset flow. The response is
// identical whether or not the account exists; internal failures are
// logged and swallowed for the same reason.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrMemberNotFound) {
			s.log.Error("forgot-password lookup failed", zap.Error(err))
		}
		return
	}

	code, err := s.otp.Issue(ctx, user.Email, ResetOTPTTL)
	if err != nil {
		s.log.Error("forgot-password code issue failed", zap.Error(err))
		return
	}

	if s.mailer == nil {
		s.log.Warn("forgot-password email skipped: mailer not configured")
		return
	}
	err = s.mailer.Send(ctx, mail.Message{
		To:         user.Email,
		Subject:    "Reset your password",
		TemplateID: s.templates.PasswordReset,
		Variables: map[string]any{
			"fullname":       user.Fullname,
			"otp":            code,
			"expiry_minutes": int(ResetOTPTTL.Minutes()),
		},
	})
	if err != nil {
		s.log.Error("forgot-password email failed",
			zap.String("email", user.Email),
			zap.Error(err))
	}
}

// VerifyResetOTP consumes the reset code and returns the short-lived
// reset token gating the password change.
func (s *AuthService) VerifyResetOTP(ctx context.Context, email, code string) (string, error) {
	if err := s.otp.Verify(ctx, email, code); err != nil {
		return "", err
	}

	token, err := s.tokens.IssueResetToken(normalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("auth service: issue reset token: %w", err)
	}
	return token, nil
}

// ResetPassword replaces the password after validating the reset token.
// A vanished account is treated as success so the flow cannot be used
// to probe which accounts exist.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword, confirm, resetToken string) error {
	boundEmail, err := s.tokens.VerifyResetToken(resetToken)
	if err != nil {
		return apperrors.NewUnauthorized("Invalid or expired reset token").WithInternal(err)
	}
	if boundEmail != normalizeEmail(email) {
		return apperrors.NewUnauthorized("Invalid or expired reset token")
	}
	if newPassword != confirm {
		return apperrors.NewUnauthorized("Passwords do not match")
	}
	if len(newPassword) < s.minPassword {
		return apperrors.NewUnauthorized(fmt.Sprintf("Password must be at least %d characters", s.minPassword))
	}

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return nil
		}
		return err
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("auth service: hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("password", hashed).Error; err != nil {
		return fmt.Errorf("auth service: store password: %w", err)
	}
	return nil
}

func (s *AuthService) issuePair(user *models.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		User: AuthenticatedUser{
			ID:         user.ID,
			Email:      user.Email,
			Fullname:   user.Fullname,
			Role:       user.Role,
			Activities: []string(user.Activities),
			Status:     user.Status,
			AvatarURL:  user.AvatarURL,
			CreatedAt:  user.CreatedAt,
		},
	}, nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("auth service: load user: %w", err)
	}
	return &user, nil
}
