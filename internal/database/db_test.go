package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildx-app/backend/internal/models"
	"github.com/buildx-app/backend/pkg/crypto"
)

func TestOpenDefaultsToSQLiteMemory(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, AutoMigrate(db))
	require.True(t, db.Migrator().HasTable(&models.User{}))
	require.True(t, db.Migrator().HasTable(&models.OneTimeCode{}))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
}

func TestSeedDataCreatesAdminOnce(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	seed := SeedConfig{
		AdminEmail:    "admin@example.com",
		AdminPassword: "bootstrap-secret",
	}
	require.NoError(t, AutoMigrateAndSeed(db, seed))

	var admin models.User
	require.NoError(t, db.Where("email = ?", seed.AdminEmail).First(&admin).Error)
	require.Equal(t, "AD", admin.Role)
	require.Equal(t, []string{"ALL ACCESS"}, []string(admin.Activities))
	require.Equal(t, models.StatusApproved, admin.Status)
	require.True(t, crypto.VerifyPassword(admin.Password, seed.AdminPassword))
	require.NotNil(t, admin.PasswordSetAt)

	// Seeding again with a different password leaves the account alone.
	require.NoError(t, SeedData(db, SeedConfig{
		AdminEmail:    seed.AdminEmail,
		AdminPassword: "changed",
	}))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	require.NoError(t, db.Where("email = ?", seed.AdminEmail).First(&admin).Error)
	require.True(t, crypto.VerifyPassword(admin.Password, seed.AdminPassword))
}

func TestSeedDataSkipsWhenUnconfigured(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, AutoMigrateAndSeed(db, SeedConfig{}))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}
