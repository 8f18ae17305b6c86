package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/genai"
	"gorm.io/gorm"

	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/models"
)

func suggestionPrompt(img models.Image) string {
	caption := ""
	if img.OriginalMeta != "" {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(img.OriginalMeta), &meta); err == nil {
			if hint, ok := meta["cap_a"].(string); ok {
				caption = hint
			}
		}
	}

	return fmt.Sprintf(`You are assisting human annotators who write question/answer pairs about single images. Propose ONE short, concrete question that can be answered by looking at the image alone. Focus on:

- Visible objects, colors, counts, or spatial relations
- Questions with a single unambiguous answer
- Plain language, no trivia the image cannot settle

Respond with the question only, no preamble.

Image source: %s
Caption hint: %s`, img.Source, caption)
}

// SuggestQuestion proposes a candidate question for an image so annotators
// don't start from a blank field. Needs Gemini credentials in the
// environment; without them the endpoint reports itself unavailable.
func SuggestQuestion(c *fiber.Ctx) error {
	if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "error",
			"message": "Question suggestion is not configured",
			"data":    nil,
		})
	}

	type SuggestRequest struct {
		ImageID string `json:"image_id"`
	}

	input := new(SuggestRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Invalid request body",
			"data":    nil,
		})
	}
	if input.ImageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "image_id is required",
			"data":    nil,
		})
	}

	db := database.GetDB()
	var img models.Image
	if err := db.First(&img, "id = ?", input.ImageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "Image not found",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to create suggestion client",
			"data":    nil,
		})
	}

	result, err := client.Models.GenerateContent(
		ctx,
		"gemini-2.5-flash",
		genai.Text(suggestionPrompt(img)),
		&genai.GenerateContentConfig{},
	)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to generate suggestion",
			"data":    nil,
		})
	}

	suggestion := strings.TrimSpace(result.Text())
	if suggestion == "" {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "No suggestion in response",
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "Question suggested",
		"data": fiber.Map{
			"image_id": img.ID,
			"question": suggestion,
		},
	})
}
