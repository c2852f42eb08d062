package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/pkg/crypto"
	"github.com/buildx-app/backend/pkg/metrics"
)

// TTLs for the two one-time-code flavours.
const (
	OnboardingOTPTTL = 3 * time.Minute
	ResetOTPTTL      = 15 * time.Minute
)

const otpDigits = 6

// OTPService issues and verifies short-lived numeric codes bound to an
// email address. Codes are stored bcrypt-hashed; verification always
// considers the newest code for the email and each code is consumable
// exactly once.
type OTPService struct {
	db  *gorm.DB
	now func() time.Time
}

// OTPOption customises OTPService construction.
type OTPOption func(*OTPService)

// WithOTPClock overrides the time source, primarily for tests.
func WithOTPClock(clock func() time.Time) OTPOption {
	return func(s *OTPService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewOTPService constructs an OTPService backed by the supplied database.
func NewOTPService(db *gorm.DB, opts ...OTPOption) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service requires database")
	}

	svc := &OTPService{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue generates a fresh code for the email with the given validity
// and returns its plaintext, which is never persisted. Older codes for
// the email are implicitly superseded.
func (s *OTPService) Issue(ctx context.Context, email string, ttl time.Duration) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", errors.New("otp: email is required")
	}
	if ttl <= 0 {
		return "", errors.New("otp: ttl must be positive")
	}

	code, err := crypto.GenerateNumericCode(otpDigits)
	if err != nil {
		return "", fmt.Errorf("otp: generate code: %w", err)
	}

	hash, err := crypto.HashPassword(code)
	if err != nil {
		return "", fmt.Errorf("otp: hash code: %w", err)
	}

	issuedAt := s.now()
	record := models.OneTimeCode{
		BaseModel: models.BaseModel{CreatedAt: issuedAt},
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: issuedAt.Add(ttl),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return "", fmt.Errorf("otp: store code: %w", err)
	}

	return code, nil
}

// Verify checks a candidate code against the newest record for the
// email and consumes it on success. Consumption is a conditional update
// so racing verifications cannot both succeed.
func (s *OTPService) Verify(ctx context.Context, email, candidate string) error {
	email = normalizeEmail(email)

	var record models.OneTimeCode
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.OTPVerifications.WithLabelValues("invalid").Inc()
			return ErrOTPInvalid
		}
		return fmt.Errorf("otp: load code: %w", err)
	}

	if record.UsedAt != nil {
		metrics.OTPVerifications.WithLabelValues("used").Inc()
		return ErrOTPUsed
	}
	if s.now().After(record.ExpiresAt) {
		metrics.OTPVerifications.WithLabelValues("expired").Inc()
		return ErrOTPExpired
	}

	if !crypto.VerifyPassword(record.CodeHash, candidate) {
		if err := s.db.WithContext(ctx).
			Model(&models.OneTimeCode{}).
			Where("id = ?", record.ID).
			UpdateColumn("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
			return fmt.Errorf("otp: record attempt: %w", err)
		}
		metrics.OTPVerifications.WithLabelValues("invalid").Inc()
		return ErrOTPInvalid
	}

	result := s.db.WithContext(ctx).
		Model(&models.OneTimeCode{}).
		Where("id = ? AND used_at IS NULL", record.ID).
		Update("used_at", s.now())
	if result.Error != nil {
		return fmt.Errorf("otp: consume code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.OTPVerifications.WithLabelValues("used").Inc()
		return ErrOTPUsed
	}

	metrics.OTPVerifications.WithLabelValues("success").Inc()
	return nil
}

// PurgeExpired deletes codes whose validity window has passed. Used and
// superseded codes age out through the same path once they expire.
func (s *OTPService) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Delete(&models.OneTimeCode{})
	if result.Error != nil {
		return 0, fmt.Errorf("otp: purge expired codes: %w", result.Error)
	}
	return result.RowsAffected, nil
}
