package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/pkg/crypto"
	apperrors "github.com/buildx-app/backend/pkg/errors"
	"github.com/buildx-app/backend/pkg/mail"
)

// MinPasswordLength is the minimum accepted password size.
const MinPasswordLength = 8

// OnboardingOption customises OnboardingService behaviour.
type OnboardingOption func(*OnboardingService)

// WithOnboardingClock injects a custom clock primarily for testing.
func WithOnboardingClock(clock func() time.Time) OnboardingOption {
	return func(s *OnboardingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithOnboardingTemplates configures the mail template identifiers.
func WithOnboardingTemplates(templates EmailTemplates) OnboardingOption {
	return func(s *OnboardingService) {
		s.templates = templates
	}
}

// WithOnboardingPasswordPolicy overrides the minimum password length.
func WithOnboardingPasswordPolicy(min int) OnboardingOption {
	return func(s *OnboardingService) {
		if min > 0 {
			s.minPassword = min
		}
	}
}

// OnboardingService walks invited members through the five-step
// activation flow: OTP delivery, OTP verification, password choice,
// personal details, and final confirmation. Progress is tracked with
// the nullable PasswordSetAt / DetailsCompletedAt markers; the status
// column only distinguishes PENDING from APPROVED.
type OnboardingService struct {
	db     *gorm.DB
	tokens *auth.TokenService
	otp    *OTPService
	mailer mail.Mailer

	templates   EmailTemplates
	minPassword int
	now         func() time.Time
}

// NewOnboardingService constructs an OnboardingService.
func NewOnboardingService(db *gorm.DB, tokens *auth.TokenService, otp *OTPService, mailer mail.Mailer, opts ...OnboardingOption) (*OnboardingService, error) {
	if db == nil {
		return nil, errors.New("onboarding service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("onboarding service: token service is required")
	}
	if otp == nil {
		return nil, errors.New("onboarding service: otp service is required")
	}

	service := &OnboardingService{
		db:          db,
		tokens:      tokens,
		otp:         otp,
		mailer:      mailer,
		minPassword: MinPasswordLength,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SendOTP validates the invitation token, then issues and emails a
// short-lived code to the invited address. Delivery failure is
// propagated because the code is useless if it never arrives.
func (s *OnboardingService) SendOTP(ctx context.Context, invitationToken string) (string, error) {
	email, err := s.tokens.VerifyInvitationToken(invitationToken)
	if err != nil {
		return "", apperrors.NewBadRequest("Invalid or expired invitation").WithInternal(err)
	}

	user, err := s.findUser(ctx, email)
	if err != nil {
		return "", err
	}

	code, err := s.otp.Issue(ctx, user.Email, OnboardingOTPTTL)
	if err != nil {
		return "", err
	}

	if s.mailer == nil {
		return "", errors.New("onboarding service: mailer is not configured")
	}
	err = s.mailer.Send(ctx, mail.Message{
		To:         user.Email,
		Subject:    "Your verification code",
		TemplateID: s.templates.OnboardingOTP,
		Variables: map[string]any{
			"fullname":       user.Fullname,
			"otp":            code,
			"expiry_minutes": int(OnboardingOTPTTL.Minutes()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("onboarding service: send otp email: %w", err)
	}

	return user.Email, nil
}

// VerifyOTP consumes the code and returns the onboarding-step token
// that gates the password-set step.
func (s *OnboardingService) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	if err := s.otp.Verify(ctx, email, code); err != nil {
		return "", err
	}

	token, err := s.tokens.IssueOnboardingToken(normalizeEmail(email))
	if err != nil {
		return "", fmt.Errorf("onboarding service: issue onboarding token: %w", err)
	}
	return token, nil
}

// SetPassword stores the member's chosen password. A password can be
// set exactly once per invitation cycle.
func (s *OnboardingService) SetPassword(ctx context.Context, email, password, confirm string) error {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}
	if user.PasswordSetAt != nil {
		return apperrors.NewBadRequest("Password has already been set")
	}
	if password != confirm {
		return apperrors.NewBadRequest("Passwords do not match")
	}
	if len(password) < s.minPassword {
		return apperrors.NewBadRequest(fmt.Sprintf("Password must be at least %d characters", s.minPassword))
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("onboarding service: hash password: %w", err)
	}

	now := s.now()
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"password":        hashed,
			"password_set_at": now,
		}).Error; err != nil {
		return fmt.Errorf("onboarding service: store password: %w", err)
	}
	return nil
}

// SavePersonalDetails records the member's name and optional avatar.
// Step ordering is deliberately not enforced here; ConfirmDetails is
// the gate that checks the earlier steps ran.
func (s *OnboardingService) SavePersonalDetails(ctx context.Context, email, firstName, lastName string, avatarURL *string) error {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return err
	}

	fullname := strings.TrimSpace(strings.TrimSpace(firstName) + " " + strings.TrimSpace(lastName))
	if fullname == "" {
		return apperrors.NewBadRequest("First and last name are required")
	}

	updates := map[string]any{
		"fullname":             fullname,
		"details_completed_at": s.now(),
	}
	if avatarURL != nil && strings.TrimSpace(*avatarURL) != "" {
		updates["avatar_url"] = strings.TrimSpace(*avatarURL)
	}

	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("onboarding service: store details: %w", err)
	}
	return nil
}

// ConfirmDetails finishes onboarding. It only succeeds once a real
// password and personal details are in place, and the resulting
// APPROVED status is terminal.
func (s *OnboardingService) ConfirmDetails(ctx context.Context, email string) (*models.User, error) {
	user, err := s.findUser(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.PasswordSetAt == nil {
		return nil, apperrors.NewBadRequest("Set a password before confirming")
	}
	if user.DetailsCompletedAt == nil {
		return nil, apperrors.NewBadRequest("Complete personal details before confirming")
	}

	if user.Status != models.StatusApproved {
		if err := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("status", models.StatusApproved).Error; err != nil {
			return nil, fmt.Errorf("onboarding service: approve member: %w", err)
		}
		user.Status = models.StatusApproved
	}
	return user, nil
}

func (s *OnboardingService) findUser(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ?", normalizeEmail(email)).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("onboarding service: load member: %w", err)
	}
	return &user, nil
}
