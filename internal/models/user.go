package models

import (
	"time"

	"gorm.io/datatypes"
)

// Approval status values for User.Status. Transitions are one-way:
// PENDING accounts become APPROVED when onboarding completes and are
// never moved back.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
)

// DefaultFullname is assigned to invited members until they submit
// their personal details.
const DefaultFullname = "New Member"

// User is the identity and authorization record for a platform member.
// Activities holds either the single ALL ACCESS marker or a subset of
// the activities permitted for the member's role.
type User struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Email       string  `gorm:"uniqueIndex;not null" json:"email"`
	PhoneNumber *string `gorm:"uniqueIndex" json:"phone_number"`
	Fullname    string  `gorm:"not null" json:"fullname"`
	Password    string  `gorm:"not null" json:"-"`

	Role       string                      `gorm:"not null;index" json:"role"`
	Activities datatypes.JSONSlice[string] `json:"activities"`

	Status   string `gorm:"not null;default:PENDING;index" json:"status"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	AvatarURL *string `json:"avatar_url"`

	// Onboarding progress markers. Invited members receive a random
	// placeholder password that is never communicated; PasswordSetAt is
	// nil until the member chooses their own.
	PasswordSetAt      *time.Time `json:"-"`
	DetailsCompletedAt *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsApproved reports whether the member finished onboarding.
func (u *User) IsApproved() bool {
	return u.Status == StatusApproved
}
