package annotation

import (
	"github.com/datacollect-labs/annoserve/models"
	"gorm.io/gorm"
)

// ExportedImage is one image joined with all of its annotations, flags
// included. This is the full-fidelity dump; nothing is filtered out unless
// the caller asks for approved-only.
type ExportedImage struct {
	Image       models.Image        `json:"image"`
	Annotations []models.Annotation `json:"annotations"`
}

// ExportAll joins every image with its annotations, ordered by image
// identifier and then annotation timestamp (annotation ID as the tiebreak),
// so repeated exports of unchanged data serialize byte-identically.
func ExportAll(db *gorm.DB, approvedOnly bool) ([]ExportedImage, error) {
	var images []models.Image
	if err := db.Order("id").Find(&images).Error; err != nil {
		return nil, err
	}

	query := db.Order("image_id, annotated_at, id")
	if approvedOnly {
		query = query.Where("is_approved = ? AND is_reported = ?", true, false)
	}
	var annotations []models.Annotation
	if err := query.Find(&annotations).Error; err != nil {
		return nil, err
	}

	byImage := make(map[string][]models.Annotation, len(images))
	for _, a := range annotations {
		byImage[a.ImageID] = append(byImage[a.ImageID], a)
	}

	export := make([]ExportedImage, 0, len(images))
	for _, img := range images {
		rows := byImage[img.ID]
		if rows == nil {
			rows = []models.Annotation{}
		}
		export = append(export, ExportedImage{Image: img, Annotations: rows})
	}
	return export, nil
}

// AnnotatedImages returns the most recently annotated images for the
// carousel, newest first, each paired with its latest annotation.
func AnnotatedImages(db *gorm.DB, limit int) ([]ExportedImage, error) {
	if limit <= 0 {
		limit = 50
	}

	var annotations []models.Annotation
	if err := db.Order("annotated_at DESC, id DESC").Find(&annotations).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	result := make([]ExportedImage, 0, limit)
	for _, a := range annotations {
		if seen[a.ImageID] {
			continue
		}
		seen[a.ImageID] = true

		var img models.Image
		if err := db.First(&img, "id = ?", a.ImageID).Error; err != nil {
			return nil, err
		}
		result = append(result, ExportedImage{
			Image:       img,
			Annotations: []models.Annotation{a},
		})
		if len(result) == limit {
			break
		}
	}
	return result, nil
}
