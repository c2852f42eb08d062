package models

import "time"

// OneTimeCode stores an expiring, hashed, attempt-counted verification
// code issued to an email address. Verification always inspects the most
// recently created record for the email, so issuing a fresh code
// implicitly supersedes earlier ones.
type OneTimeCode struct {
	BaseModel

	Email     string     `gorm:"not null;index" json:"email"`
	CodeHash  string     `gorm:"not null" json:"-"`
	ExpiresAt time.Time  `gorm:"index" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	Attempts  int        `gorm:"default:0" json:"attempts"`
}
