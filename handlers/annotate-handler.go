package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/datacollect-labs/annoserve/annotation"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/middleware"
)

// workflowError maps the annotation package's error taxonomy onto HTTP
// status codes.
func workflowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, annotation.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	case errors.Is(err, annotation.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	case errors.Is(err, annotation.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Store error, no changes were saved",
			"data":    nil,
		})
	}
}

// Annotate saves a question/answer pair for an image.
func Annotate(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Unauthorized Request",
			"data":    nil,
		})
	}

	type AnnotateRequest struct {
		ImageID      string  `json:"image_id"`
		Question     string  `json:"question"`
		Answer       string  `json:"answer"`
		AssignmentID *string `json:"assignment_id"`
		Pass         int     `json:"annotation_pass"`
	}

	input := new(AnnotateRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request body",
			"data":    nil,
		})
	}

	db := database.GetDB()
	created, err := annotation.Record(db, annotation.RecordInput{
		ImageID:      input.ImageID,
		UserID:       user.ID,
		AssignmentID: input.AssignmentID,
		Question:     input.Question,
		Answer:       input.Answer,
		Pass:         input.Pass,
	})
	if err != nil {
		return workflowError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Annotation saved",
		"data":    created,
	})
}

// ReportImage flags an image that won't load or has issues.
func ReportImage(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Unauthorized Request",
			"data":    nil,
		})
	}

	type ReportRequest struct {
		ImageID string `json:"image_id"`
		Reason  string `json:"reason"`
	}

	input := new(ReportRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request body",
			"data":    nil,
		})
	}

	db := database.GetDB()
	created, err := annotation.Report(db, input.ImageID, user.ID, input.Reason, policyOptions())
	if err != nil {
		return workflowError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Image reported successfully",
		"data":    created,
	})
}

// RejectImage skips an image for the caller without saving an annotation.
// The image resurfaces for the selector unless block is set.
func RejectImage(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"status":  "error",
			"message": "Unauthorized Request",
			"data":    nil,
		})
	}

	type RejectRequest struct {
		ImageID string `json:"image_id"`
		Block   bool   `json:"block"`
	}

	input := new(RejectRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request body",
			"data":    nil,
		})
	}

	db := database.GetDB()
	if err := annotation.Reject(db, input.ImageID, user.ID, input.Block); err != nil {
		return workflowError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Image skipped",
		"data":    nil,
	})
}
