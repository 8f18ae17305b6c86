package importer

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/datacollect-labs/annoserve/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// manifest mirrors the images.json layout produced by the collection
// pipeline: a list of image entries plus pair-level metadata at the top.
type manifest struct {
	Images []struct {
		ImageURL string `json:"image_url"`
	} `json:"images"`
	FlickrURL string          `json:"flickr_url"`
	IsURL     *bool           `json:"is_url"`
	IDA       json.RawMessage `json:"id_a"`
	CapA      json.RawMessage `json:"cap_a"`
	SimText   json.RawMessage `json:"sim_text"`
	SimImg    json.RawMessage `json:"sim_img"`
	Source    json.RawMessage `json:"source"`
}

// LoadImages reads the manifest at path and inserts its images with
// zero-padded sequential IDs. The load is idempotent: it is skipped entirely
// when images are already present, and individual duplicates are ignored.
func LoadImages(db *gorm.DB, path string) (int, error) {
	var count int64
	if err := db.Model(&models.Image{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		log.Printf("Database already contains %d images, skipping import", count)
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Image manifest not found: %s", path)
			return 0, nil
		}
		return 0, err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, fmt.Errorf("failed to parse image manifest %s: %w", path, err)
	}

	source := m.FlickrURL
	if source == "" {
		source = "unknown"
	}

	meta := map[string]interface{}{
		"is_url":   true,
		"id_a":     m.IDA,
		"cap_a":    m.CapA,
		"sim_text": m.SimText,
		"sim_img":  m.SimImg,
		"source":   m.Source,
	}
	if m.IsURL != nil {
		meta["is_url"] = *m.IsURL
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, err
	}

	imported := 0
	for i, entry := range m.Images {
		if entry.ImageURL == "" {
			log.Printf("Skipping manifest entry %d: no image_url", i)
			continue
		}
		image := models.Image{
			ID:           fmt.Sprintf("%06d", i),
			Source:       source,
			ImagePath:    entry.ImageURL,
			ImageURL:     entry.ImageURL,
			OriginalMeta: string(metaJSON),
		}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&image)
		if res.Error != nil {
			return imported, res.Error
		}
		imported += int(res.RowsAffected)
	}

	log.Printf("Loaded %d images into the database", imported)
	return imported, nil
}
