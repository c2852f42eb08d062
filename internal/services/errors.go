package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/buildx-app/backend/pkg/errors"
)

var (
	// ErrMemberNotFound indicates the requested member does not exist.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "Member not found", http.StatusNotFound)
	// ErrEmailTaken signals the email is already attached to an account,
	// pending or approved.
	ErrEmailTaken = apperrors.New("CONFLICT", "User with this email already exists", http.StatusConflict)
	// ErrPhoneTaken signals the phone number is already attached to an account.
	ErrPhoneTaken = apperrors.New("CONFLICT", "User with this phone number already exists", http.StatusConflict)
	// ErrInvitationNotPending guards withdrawal of accepted invitations.
	ErrInvitationNotPending = apperrors.NewBadRequest("Cannot withdraw invitation for members who have already joined")

	// ErrOTPInvalid covers a missing record or a code mismatch.
	ErrOTPInvalid = apperrors.New("OTP_INVALID", "Invalid code", http.StatusUnauthorized)
	// ErrOTPExpired indicates the code's TTL has elapsed.
	ErrOTPExpired = apperrors.New("OTP_EXPIRED", "Code expired", http.StatusUnauthorized)
	// ErrOTPUsed indicates the code was already consumed.
	ErrOTPUsed = apperrors.New("OTP_USED", "Code already used", http.StatusUnauthorized)
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
