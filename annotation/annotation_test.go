package annotation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/datacollect-labs/annoserve/models"
)

// newTestDB initializes a temporary database for testing purposes.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := t.TempDir() + "/test.db"

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "Failed to open database")

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Image{},
		&models.Assignment{},
		&models.Annotation{},
	), "Failed to migrate test database")

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	user := models.User{
		Username:     username,
		PasswordHash: "x",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedImages(t *testing.T, db *gorm.DB, n int) []models.Image {
	t.Helper()
	images := make([]models.Image, 0, n)
	for i := 0; i < n; i++ {
		img := models.Image{
			ID:        fmt.Sprintf("%06d", i),
			Source:    "test",
			ImagePath: fmt.Sprintf("https://example.com/img_%d.jpg", i),
			ImageURL:  fmt.Sprintf("https://example.com/img_%d.jpg", i),
		}
		require.NoError(t, db.Create(&img).Error)
		images = append(images, img)
	}
	return images
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}
