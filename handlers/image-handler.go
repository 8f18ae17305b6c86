package handler

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/datacollect-labs/annoserve/annotation"
	"github.com/datacollect-labs/annoserve/config"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/middleware"
	"github.com/datacollect-labs/annoserve/models"
)

func policyOptions() annotation.Options {
	return annotation.Options{
		SingleAnnotator:        config.ConfigBool("SINGLE_ANNOTATOR_MODE", false),
		ReportCountsAnnotation: config.ConfigBool("REPORT_COUNTS_ANNOTATION", false),
	}
}

// imagePayload shapes an image the way the annotation UI expects it, with
// the original metadata blob decoded and the latest annotation attached.
func imagePayload(db *gorm.DB, img models.Image) fiber.Map {
	var meta map[string]interface{}
	if img.OriginalMeta != "" {
		if err := json.Unmarshal([]byte(img.OriginalMeta), &meta); err != nil {
			meta = map[string]interface{}{}
		}
	} else {
		meta = map[string]interface{}{}
	}

	payload := fiber.Map{
		"id":               img.ID,
		"source":           img.Source,
		"image":            img.ImagePath,
		"image_url":        img.ImageURL,
		"metadata":         meta,
		"annotation_count": img.AnnotationCount,
		"annotation":       nil,
	}

	var latest models.Annotation
	err := db.Where("image_id = ?", img.ID).
		Order("annotated_at DESC, id DESC").
		First(&latest).Error
	if err == nil {
		payload["annotation"] = latest
	}

	return payload
}

// RandomImage hands the caller the next image on their queue, or the
// completion signal once everything is covered.
func RandomImage(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Unauthorized Request",
			"data":    nil,
		})
	}

	db := database.GetDB()
	sel, err := annotation.SelectNext(db, user.ID, policyOptions())
	if err != nil {
		if errors.Is(err, annotation.ErrNoneAvailable) {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"status":  "success",
				"message": "All images have been annotated!",
				"data":    fiber.Map{"all_complete": true},
			})
		}
		if errors.Is(err, annotation.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "User not found",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to select next image",
			"data":    nil,
		})
	}

	payload := imagePayload(db, sel.Image)
	payload["assignment_id"] = sel.Assignment.ID

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Next image selected",
		"data":    payload,
	})
}

// GetImage returns one image by ID with its latest annotation.
func GetImage(c *fiber.Ctx) error {
	id := c.Params("id")

	db := database.GetDB()
	var img models.Image
	if err := db.First(&img, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Image not found",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to get image",
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Image found",
		"data":    imagePayload(db, img),
	})
}

// AnnotatedImages lists the most recently annotated images for the carousel.
func AnnotatedImages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	db := database.GetDB()
	images, err := annotation.AnnotatedImages(db, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to list annotated images",
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Annotated images",
		"data":    images,
	})
}
