package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default validity periods for each token kind.
const (
	DefaultAccessTokenTTL     = 24 * time.Hour
	DefaultRefreshTokenTTL    = 7 * 24 * time.Hour
	DefaultResetTokenTTL      = 5 * time.Minute
	DefaultInvitationTokenTTL = 7 * 24 * time.Hour
	DefaultOnboardingTokenTTL = time.Hour
)

// OnboardingStepOTPVerified is the step claim proving OTP verification.
const OnboardingStepOTPVerified = "otp-verified"

// TokenConfig bundles the configuration required to build a TokenService.
// Each token class signs with its own secret so leaking one class does
// not compromise the others; invitation and onboarding tokens share the
// general secret.
type TokenConfig struct {
	GeneralSecret string
	AccessSecret  string
	RefreshSecret string
	ResetSecret   string

	Issuer string

	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ResetTTL      time.Duration
	InvitationTTL time.Duration
	OnboardingTTL time.Duration

	Clock func() time.Time
}

// Claims represents the custom claims embedded in issued tokens.
// Subject carries the user id for access/refresh tokens; email-bound
// tokens (invitation, onboarding, reset) leave it empty.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Step  string `json:"step,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the numeric user id out of the subject claim.
func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token: invalid subject claim: %w", err)
	}
	return uint(id), nil
}

// TokenService issues and validates the signed tokens used across the
// authentication and onboarding flows.
type TokenService struct {
	general []byte
	access  []byte
	refresh []byte
	reset   []byte

	issuer string

	accessTTL     time.Duration
	refreshTTL    time.Duration
	resetTTL      time.Duration
	invitationTTL time.Duration
	onboardingTTL time.Duration

	now func() time.Time
}

// NewTokenService constructs a TokenService from the supplied configuration.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.GeneralSecret == "" {
		return nil, errors.New("token: general secret must be provided")
	}
	if cfg.AccessSecret == "" {
		return nil, errors.New("token: access secret must be provided")
	}
	if cfg.RefreshSecret == "" {
		return nil, errors.New("token: refresh secret must be provided")
	}
	if cfg.ResetSecret == "" {
		return nil, errors.New("token: reset secret must be provided")
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		general:       []byte(cfg.GeneralSecret),
		access:        []byte(cfg.AccessSecret),
		refresh:       []byte(cfg.RefreshSecret),
		reset:         []byte(cfg.ResetSecret),
		issuer:        cfg.Issuer,
		accessTTL:     ttlOrDefault(cfg.AccessTTL, DefaultAccessTokenTTL),
		refreshTTL:    ttlOrDefault(cfg.RefreshTTL, DefaultRefreshTokenTTL),
		resetTTL:      ttlOrDefault(cfg.ResetTTL, DefaultResetTokenTTL),
		invitationTTL: ttlOrDefault(cfg.InvitationTTL, DefaultInvitationTokenTTL),
		onboardingTTL: ttlOrDefault(cfg.OnboardingTTL, DefaultOnboardingTokenTTL),
		now:           now,
	}, nil
}

// IssueAccessToken creates the session credential carrying user id,
// email, and role.
func (s *TokenService) IssueAccessToken(userID uint, email, role string) (string, error) {
	claims := s.baseClaims(s.accessTTL)
	claims.Subject = strconv.FormatUint(uint64(userID), 10)
	claims.Email = email
	claims.Role = role
	return s.sign(claims, s.access)
}

// IssueRefreshToken creates the long-lived refresh credential carrying
// only the user id.
func (s *TokenService) IssueRefreshToken(userID uint) (string, error) {
	claims := s.baseClaims(s.refreshTTL)
	claims.Subject = strconv.FormatUint(uint64(userID), 10)
	return s.sign(claims, s.refresh)
}

// IssueInvitationToken creates the email-bound token embedded in
// invitation links.
func (s *TokenService) IssueInvitationToken(email string) (string, error) {
	claims := s.baseClaims(s.invitationTTL)
	claims.Email = email
	return s.sign(claims, s.general)
}

// IssueOnboardingToken creates the token proving the email passed OTP
// verification, gating the password-set step.
func (s *TokenService) IssueOnboardingToken(email string) (string, error) {
	claims := s.baseClaims(s.onboardingTTL)
	claims.Email = email
	claims.Step = OnboardingStepOTPVerified
	return s.sign(claims, s.general)
}

// IssueResetToken creates the short-lived token gating a password reset.
func (s *TokenService) IssueResetToken(email string) (string, error) {
	claims := s.baseClaims(s.resetTTL)
	claims.Email = email
	return s.sign(claims, s.reset)
}

// VerifyAccessToken validates a session credential.
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	claims, err := s.parse(token, s.access)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token: missing subject claim")
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh credential.
func (s *TokenService) VerifyRefreshToken(token string) (*Claims, error) {
	claims, err := s.parse(token, s.refresh)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token: missing subject claim")
	}
	return claims, nil
}

// VerifyInvitationToken validates an invitation token and returns the
// invited email address.
func (s *TokenService) VerifyInvitationToken(token string) (string, error) {
	claims, err := s.parse(token, s.general)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", errors.New("token: missing email claim")
	}
	if claims.Step != "" {
		return "", errors.New("token: unexpected step claim")
	}
	return claims.Email, nil
}

// VerifyOnboardingToken validates an onboarding-step token, requiring
// the otp-verified step claim.
func (s *TokenService) VerifyOnboardingToken(token string) (string, error) {
	claims, err := s.parse(token, s.general)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", errors.New("token: missing email claim")
	}
	if claims.Step != OnboardingStepOTPVerified {
		return "", errors.New("token: missing otp-verified step claim")
	}
	return claims.Email, nil
}

// VerifyResetToken validates a password-reset token and returns the
// bound email address.
func (s *TokenService) VerifyResetToken(token string) (string, error) {
	claims, err := s.parse(token, s.reset)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", errors.New("token: missing email claim")
	}
	return claims.Email, nil
}

func (s *TokenService) baseClaims(ttl time.Duration) *Claims {
	now := s.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func (s *TokenService) sign(claims *Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenString string, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token: parse: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("token: invalid issuer")
	}

	return &claims, nil
}

func ttlOrDefault(ttl, fallback time.Duration) time.Duration {
	if ttl <= 0 {
		return fallback
	}
	return ttl
}
