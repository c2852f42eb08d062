package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/buildx-app/backend/internal/activities"
	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/pkg/crypto"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.OneTimeCode{},
	)
}

// SeedConfig describes the bootstrap administrator account. Seeding is
// skipped when either field is empty.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminFullname string
}

// SeedData provisions the bootstrap administrator with unrestricted
// access. The account is created once; an existing record with the
// same email is left untouched.
func SeedData(db *gorm.DB, cfg SeedConfig) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}

	hashed, err := crypto.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	fullname := cfg.AdminFullname
	if fullname == "" {
		fullname = "Administrator"
	}

	now := time.Now()
	admin := models.User{
		Email:              cfg.AdminEmail,
		Fullname:           fullname,
		Password:           hashed,
		Role:               string(activities.RoleAdmin),
		Activities:         datatypes.NewJSONSlice([]string{activities.AllAccess}),
		Status:             models.StatusApproved,
		IsActive:           true,
		PasswordSetAt:      &now,
		DetailsCompletedAt: &now,
	}

	return db.Where(models.User{Email: admin.Email}).
		Attrs(admin).
		FirstOrCreate(&models.User{}).Error
}
