package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/datacollect-labs/annoserve/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := t.TempDir() + "/test.db"

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open database")
	require.NoError(t, db.AutoMigrate(&models.Image{}))
	return db
}

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "images.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadImagesAssignsSequentialIDs(t *testing.T) {
	db := newTestDB(t)
	path := writeManifest(t, `{
		"flickr_url": "https://flickr.com/photos/xyz",
		"is_url": true,
		"cap_a": "a red bicycle leaning on a wall",
		"images": [
			{"image_url": "https://example.com/a.jpg"},
			{"image_url": "https://example.com/b.jpg"}
		]
	}`)

	n, err := LoadImages(db, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var first models.Image
	require.NoError(t, db.First(&first, "id = ?", "000000").Error)
	assert.Equal(t, "https://example.com/a.jpg", first.ImagePath)
	assert.Equal(t, "https://flickr.com/photos/xyz", first.Source)
	assert.Contains(t, first.OriginalMeta, "a red bicycle")

	var second models.Image
	require.NoError(t, db.First(&second, "id = ?", "000001").Error)
	assert.Equal(t, "https://example.com/b.jpg", second.ImageURL)
}

func TestLoadImagesIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	path := writeManifest(t, `{"images": [{"image_url": "https://example.com/a.jpg"}]}`)

	n, err := LoadImages(db, path)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// A second run against a populated store does nothing.
	n, err = LoadImages(db, path)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int64
	require.NoError(t, db.Model(&models.Image{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLoadImagesSkipsEntriesWithoutURL(t *testing.T) {
	db := newTestDB(t)
	path := writeManifest(t, `{"images": [{"image_url": ""}, {"image_url": "https://example.com/a.jpg"}]}`)

	n, err := LoadImages(db, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// IDs track manifest position, not insert order.
	var img models.Image
	require.NoError(t, db.First(&img, "id = ?", "000001").Error)
	assert.Equal(t, "https://example.com/a.jpg", img.ImagePath)
}

func TestLoadImagesMissingManifest(t *testing.T) {
	db := newTestDB(t)

	n, err := LoadImages(db, filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoadImagesMalformedManifest(t *testing.T) {
	db := newTestDB(t)
	path := writeManifest(t, `{"images": [`)

	_, err := LoadImages(db, path)
	assert.Error(t, err)
}
