package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/datacollect-labs/annoserve/annotation"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/storage"
)

// Stats returns the aggregate annotation progress numbers.
func Stats(c *fiber.Ctx) error {
	db := database.GetDB()
	var stats *annotation.Stats
	err := database.RetryRead(func() error {
		var err error
		stats, err = annotation.GetStats(db)
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to compute stats",
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Annotation statistics",
		"data":    stats,
	})
}

// ExportAll serves the full JSON dump of every image with its annotations.
// The body is a bare array serialized once, so repeated exports of unchanged
// data are byte-identical. With ?upload=true and EXPORT_BUCKET configured
// the same bytes are also pushed to the bucket.
func ExportAll(c *fiber.Ctx) error {
	db := database.GetDB()

	var export []annotation.ExportedImage
	err := database.RetryRead(func() error {
		var err error
		export, err = annotation.ExportAll(db, c.QueryBool("approved_only", false))
		return err
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to export annotations",
			"data":    nil,
		})
	}

	body, err := json.Marshal(export)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to serialize export",
			"data":    nil,
		})
	}

	if c.QueryBool("upload", false) {
		bucket := os.Getenv("EXPORT_BUCKET")
		if bucket == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "error",
				"message": "EXPORT_BUCKET is not configured",
				"data":    nil,
			})
		}

		ctx := context.Background()
		uploader, err := storage.NewUploader(ctx, bucket)
		if err != nil {
			log.Printf("Failed to create export uploader: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Failed to reach export bucket",
				"data":    nil,
			})
		}
		defer uploader.Close()

		object := fmt.Sprintf("annotations_%s.json", time.Now().UTC().Format("20060102T150405"))
		url, err := uploader.UploadObject(ctx, object, body)
		if err != nil {
			log.Printf("Failed to upload export: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"status":  "error",
				"message": "Failed to upload export",
				"data":    nil,
			})
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "Export uploaded",
			"data":    fiber.Map{"url": url, "images": len(export)},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
