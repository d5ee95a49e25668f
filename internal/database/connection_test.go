package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
	"github.com/Makeis02/landingmaj-sub003/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func TestRunMigrations(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, RunMigrations(db))
	// migrations are re-runnable on every boot
	require.NoError(t, RunMigrations(db))

	for _, table := range []string{"products", "editable_content", "product_prices", "promo_codes", "promo_code_usages", "orders", "order_items", "admin_users", "audit_logs"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestSeedInitialData(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, RunMigrations(db))

	require.NoError(t, SeedInitialData(db, config.AdminConfig{}))
	var count int64
	require.NoError(t, db.Model(&models.AdminUser{}).Count(&count).Error)
	assert.Zero(t, count)

	cfg := config.AdminConfig{Email: "Admin@AquaShop.test", Password: "s3cret-password"}
	require.NoError(t, SeedInitialData(db, cfg))
	require.NoError(t, SeedInitialData(db, cfg))

	var admins []models.AdminUser
	require.NoError(t, db.Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "admin@aquashop.test", admins[0].Email)
	assert.NoError(t, admins[0].CheckPassword("s3cret-password"))
	assert.Error(t, admins[0].CheckPassword("wrong"))
}
