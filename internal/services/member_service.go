package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/activities"
	"github.com/buildx-app/backend/internal/auth"
	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/pkg/crypto"
	"github.com/buildx-app/backend/pkg/logger"
	"github.com/buildx-app/backend/pkg/mail"
	"github.com/buildx-app/backend/pkg/metrics"
)

const placeholderPasswordBytes = 24

// EmailTemplates holds the per-flow transactional template identifiers.
type EmailTemplates struct {
	Invitation    string
	OnboardingOTP string
	PasswordReset string
}

// MemberOption customises MemberService behaviour.
type MemberOption func(*MemberService)

// WithInviteURL configures the base URL embedded in invitation emails.
// The invitation token is appended as a query parameter.
func WithInviteURL(url string) MemberOption {
	return func(s *MemberService) {
		s.inviteURL = strings.TrimRight(url, "/")
	}
}

// WithSenderName sets the administrator name used in invitation emails.
func WithSenderName(name string) MemberOption {
	return func(s *MemberService) {
		if name != "" {
			s.senderName = name
		}
	}
}

// WithMemberTemplates configures the mail template identifiers.
func WithMemberTemplates(templates EmailTemplates) MemberOption {
	return func(s *MemberService) {
		s.templates = templates
	}
}

// MemberService manages member invitations, listings, and access grants.
type MemberService struct {
	db     *gorm.DB
	tokens *auth.TokenService
	otp    *OTPService
	mailer mail.Mailer

	inviteURL  string
	senderName string
	templates  EmailTemplates
	log        *zap.Logger
}

// NewMemberService constructs a MemberService with the provided dependencies.
func NewMemberService(db *gorm.DB, tokens *auth.TokenService, otp *OTPService, mailer mail.Mailer, opts ...MemberOption) (*MemberService, error) {
	if db == nil {
		return nil, errors.New("member service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("member service: token service is required")
	}
	if otp == nil {
		return nil, errors.New("member service: otp service is required")
	}

	service := &MemberService{
		db:         db,
		tokens:     tokens,
		otp:        otp,
		mailer:     mailer,
		senderName: "The Admin Team",
		log:        logger.WithModule("members"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// InviteInput describes a member invitation request.
type InviteInput struct {
	Email       string
	PhoneNumber *string
	Role        string
	Activities  []string
	Fullname    string
}

// RoleInfo pairs a role code with its display label.
type RoleInfo struct {
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

// Invite creates a PENDING member and emails the invitation link. The
// account is created with a random placeholder password that is never
// communicated. Email delivery failure is logged, not propagated, so
// account creation is never rolled back for a notification problem.
func (s *MemberService) Invite(ctx context.Context, input InviteInput) (*models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, errors.New("member service: email is required")
	}

	role, ok := activities.ParseRole(input.Role)
	if !ok {
		return nil, apperrBadRole(input.Role)
	}

	granted, err := resolveActivities(role, input.Activities)
	if err != nil {
		return nil, err
	}

	if err := s.ensureContactsFree(ctx, email, input.PhoneNumber); err != nil {
		return nil, err
	}

	placeholder, err := crypto.GenerateToken(placeholderPasswordBytes)
	if err != nil {
		return nil, fmt.Errorf("member service: generate placeholder: %w", err)
	}
	hashed, err := crypto.HashPassword(placeholder)
	if err != nil {
		return nil, fmt.Errorf("member service: hash placeholder: %w", err)
	}

	fullname := strings.TrimSpace(input.Fullname)
	if fullname == "" {
		fullname = models.DefaultFullname
	}

	user := models.User{
		Email:       email,
		PhoneNumber: normalizePhone(input.PhoneNumber),
		Fullname:    fullname,
		Password:    hashed,
		Role:        string(role),
		Activities:  datatypes.NewJSONSlice(granted),
		Status:      models.StatusPending,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("member service: create member: %w", err)
	}

	s.sendInvitationEmail(ctx, &user)

	return &user, nil
}

// ListRoles returns the static role enumeration with display labels.
func (s *MemberService) ListRoles() []RoleInfo {
	roles := activities.Roles()
	out := make([]RoleInfo, 0, len(roles))
	for _, role := range roles {
		out = append(out, RoleInfo{
			Role:        string(role),
			DisplayName: activities.DisplayName(role),
		})
	}
	return out
}

// ListActivities returns the permitted activity list for a role label.
func (s *MemberService) ListActivities(roleLabel string) ([]string, error) {
	role, ok := activities.ParseRole(roleLabel)
	if !ok {
		return nil, apperrBadRole(roleLabel)
	}
	return activities.ForRole(role), nil
}

// ListOptions filters and paginates member listings.
type ListOptions struct {
	Page   int
	Limit  int
	Search string
	Role   string
}

// MemberSummary is a listing row with the derived access type.
type MemberSummary struct {
	ID          uint     `json:"id"`
	Email       string   `json:"email"`
	PhoneNumber *string  `json:"phone_number"`
	Fullname    string   `json:"fullname"`
	Role        string   `json:"role"`
	Activities  []string `json:"activities"`
	AccessType  string   `json:"access_type"`
	Status      string   `json:"status"`
	IsActive    bool     `json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
}

// ListMembers returns members newest first, filtered by role and search
// term. A numeric search term matches the member id exactly; anything
// else matches name or email case-insensitively.
func (s *MemberService) ListMembers(ctx context.Context, opts ListOptions) ([]MemberSummary, int64, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 20
	}

	query := s.db.WithContext(ctx).Model(&models.User{})

	if role := strings.TrimSpace(opts.Role); role != "" {
		parsed, ok := activities.ParseRole(role)
		if !ok {
			return nil, 0, apperrBadRole(role)
		}
		query = query.Where("role = ?", string(parsed))
	}

	if search := strings.TrimSpace(opts.Search); search != "" {
		if id, err := strconv.ParseUint(search, 10, 64); err == nil {
			query = query.Where("id = ?", uint(id))
		} else {
			needle := "%" + strings.ToLower(search) + "%"
			query = query.Where("LOWER(fullname) LIKE ? OR LOWER(email) LIKE ?", needle, needle)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("member service: count members: %w", err)
	}

	var users []models.User
	if err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("member service: list members: %w", err)
	}

	summaries := make([]MemberSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, summarize(&users[i]))
	}
	return summaries, total, nil
}

// ProjectStats is a placeholder for a future project subsystem; all
// counters report zero until one exists.
type ProjectStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
}

// MemberDetail is the single-member projection. ProjectStats is only
// populated for APPROVED members; invited members have no project
// history worth reporting.
type MemberDetail struct {
	MemberSummary

	AvatarURL    *string       `json:"avatar_url,omitempty"`
	ProjectStats *ProjectStats `json:"project_stats,omitempty"`
}

// GetMember loads one member. Approved members receive the extended
// projection with the project-statistics placeholder.
func (s *MemberService) GetMember(ctx context.Context, id uint) (*MemberDetail, error) {
	user, err := s.findMember(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &MemberDetail{
		MemberSummary: summarize(user),
		AvatarURL:     user.AvatarURL,
	}
	if user.IsApproved() {
		detail.ProjectStats = &ProjectStats{}
	}
	return detail, nil
}

// WithdrawInvitation hard-deletes a member who has not yet completed
// onboarding and returns the freed email address.
func (s *MemberService) WithdrawInvitation(ctx context.Context, id uint) (string, error) {
	user, err := s.findMember(ctx, id)
	if err != nil {
		return "", err
	}
	if user.Status != models.StatusPending {
		return "", ErrInvitationNotPending
	}

	if err := s.db.WithContext(ctx).Delete(&models.User{}, user.ID).Error; err != nil {
		return "", fmt.Errorf("member service: delete member: %w", err)
	}
	return user.Email, nil
}

// ResendInvitation re-issues a fresh invitation token and re-sends the
// email. There is deliberately no status guard: the original flow
// allows resending to members who already joined (see DESIGN.md).
func (s *MemberService) ResendInvitation(ctx context.Context, id uint) error {
	user, err := s.findMember(ctx, id)
	if err != nil {
		return err
	}
	return s.deliverInvitation(ctx, user)
}

// ToggleActive flips the member's active flag and returns the new value.
// Approval status is untouched.
func (s *MemberService) ToggleActive(ctx context.Context, id uint) (bool, error) {
	user, err := s.findMember(ctx, id)
	if err != nil {
		return false, err
	}

	next := !user.IsActive
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("is_active", next).Error; err != nil {
		return false, fmt.Errorf("member service: toggle active: %w", err)
	}
	return next, nil
}

// AccessUpdate carries a partial access change. A nil field is left
// untouched; supplying neither is a no-op write.
type AccessUpdate struct {
	Role       *string
	Activities []string
}

// UpdateAccess changes a member's role and/or granted activities. When
// the role changes, activities are re-validated (or defaulted) against
// the new role; otherwise supplied activities are checked against the
// existing role.
func (s *MemberService) UpdateAccess(ctx context.Context, id uint, update AccessUpdate) (*models.User, error) {
	user, err := s.findMember(ctx, id)
	if err != nil {
		return nil, err
	}

	role := activities.Role(user.Role)
	if update.Role != nil {
		parsed, ok := activities.ParseRole(*update.Role)
		if !ok {
			return nil, apperrBadRole(*update.Role)
		}
		role = parsed
	}

	granted := []string(user.Activities)
	if update.Role != nil || update.Activities != nil {
		granted, err = resolveActivities(role, update.Activities)
		if err != nil {
			return nil, err
		}
	}

	user.Role = string(role)
	user.Activities = datatypes.NewJSONSlice(granted)
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"role":       user.Role,
			"activities": user.Activities,
		}).Error; err != nil {
		return nil, fmt.Errorf("member service: update access: %w", err)
	}
	return user, nil
}

// ResetMemberPassword issues a password-reset code on a member's behalf
// and emails it. Unlike the invitation path, delivery failure is
// propagated because the code is useless if it never arrives.
func (s *MemberService) ResetMemberPassword(ctx context.Context, id uint) error {
	user, err := s.findMember(ctx, id)
	if err != nil {
		return err
	}

	code, err := s.otp.Issue(ctx, user.Email, ResetOTPTTL)
	if err != nil {
		return err
	}

	if s.mailer == nil {
		return errors.New("member service: mailer is required for password reset")
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
		return fmt.Errorf("member service: send reset email: %w", err)
	}
	return nil
}

func (s *MemberService) findMember(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("member service: load member: %w", err)
	}
	return &user, nil
}

func (s *MemberService) ensureContactsFree(ctx context.Context, email string, phone *string) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error; err != nil {
		return fmt.Errorf("member service: check email: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}

	if normalized := normalizePhone(phone); normalized != nil {
		if err := s.db.WithContext(ctx).
			Model(&models.User{}).
			Where("phone_number = ?", *normalized).
			Count(&count).Error; err != nil {
			return fmt.Errorf("member service: check phone: %w", err)
		}
		if count > 0 {
			return ErrPhoneTaken
		}
	}
	return nil
}

// sendInvitationEmail is the best-effort variant used during invite.
func (s *MemberService) sendInvitationEmail(ctx context.Context, user *models.User) {
	if err := s.deliverInvitation(ctx, user); err != nil {
		metrics.InvitationsSent.WithLabelValues("email_failed").Inc()
		s.log.Warn("invitation email not delivered",
			zap.String("email", user.Email),
			zap.Error(err))
		return
	}
	metrics.InvitationsSent.WithLabelValues("sent").Inc()
}

func (s *MemberService) deliverInvitation(ctx context.Context, user *models.User) error {
	token, err := s.tokens.IssueInvitationToken(user.Email)
	if err != nil {
		return fmt.Errorf("member service: issue invitation token: %w", err)
	}

	if s.mailer == nil {
		return errors.New("member service: mailer is not configured")
	}
	err = s.mailer.Send(ctx, mail.Message{
		To:         user.Email,
		Subject:    "You've been invited to BuildX",
		TemplateID: s.templates.Invitation,
		Variables: map[string]any{
			"admin_name":   s.senderName,
			"role":         activities.DisplayName(activities.Role(user.Role)),
			"invite_url":   s.inviteLink(token),
			"expiry_hours": int(auth.DefaultInvitationTokenTTL.Hours()),
		},
	})
	if err != nil {
		return fmt.Errorf("member service: send invitation email: %w", err)
	}
	return nil
}

func (s *MemberService) inviteLink(token string) string {
	if s.inviteURL == "" {
		return token
	}
	return fmt.Sprintf("%s?token=%s", s.inviteURL, token)
}

func summarize(user *models.User) MemberSummary {
	granted := []string(user.Activities)
	return MemberSummary{
		ID:          user.ID,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Fullname:    user.Fullname,
		Role:        user.Role,
		Activities:  granted,
		AccessType:  accessTypeFor(activities.Role(user.Role), granted),
		Status:      user.Status,
		IsActive:    user.IsActive,
		CreatedAt:   user.CreatedAt,
	}
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
