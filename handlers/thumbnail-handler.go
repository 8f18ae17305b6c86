package handler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/disintegration/gift"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/models"
)

const (
	MaxImageWidth  = 4000
	MaxImageHeight = 4000
	JPEGQuality    = 90

	MaxThumbWidth  = 1024
	MaxThumbHeight = 1024
)

func loadImage(imageURL string) (image.Image, error) {
	res, err := http.Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %v", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d", res.StatusCode)
	}

	// Check content type
	contentType := res.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image")
	}

	img, _, err := image.Decode(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}

	// Check image dimensions
	bounds := img.Bounds()
	if bounds.Dx() > MaxImageWidth || bounds.Dy() > MaxImageHeight {
		return nil, fmt.Errorf("image too large (max %dx%d)", MaxImageWidth, MaxImageHeight)
	}

	return img, nil
}

func parseIntParam(param, paramName string) (int, error) {
	if param == "" {
		return 0, fmt.Errorf("%s parameter is required", paramName)
	}

	value, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be an integer", paramName)
	}

	if value < 0 {
		return 0, fmt.Errorf("%s must be positive", paramName)
	}

	return value, nil
}

func parseDimensions(param string) (int, int, error) {
	if param == "" {
		return 0, 0, fmt.Errorf("size parameter is required")
	}

	parts := strings.Split(param, "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size must be in format 'widthxheight'")
	}

	width, err := parseIntParam(parts[0], "width")
	if err != nil {
		return 0, 0, err
	}

	height, err := parseIntParam(parts[1], "height")
	if err != nil {
		return 0, 0, err
	}

	if width > MaxThumbWidth || height > MaxThumbHeight {
		return 0, 0, fmt.Errorf("thumbnail too large (max %dx%d)", MaxThumbWidth, MaxThumbHeight)
	}

	return width, height, nil
}

func encodeImage(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %v", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail fetches the stored image, resizes it for the carousel and
// returns JPEG bytes. ?size=WxH picks the dimensions, ?grayscale=1 renders
// it monochrome.
func Thumbnail(c *fiber.Ctx) error {
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
			"message": "Database error",
			"data":    nil,
		})
	}

	width, height, err := parseDimensions(c.Query("size", "256x256"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": err.Error(),
			"data":    nil,
		})
	}

	src, err := loadImage(img.ImagePath)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"status":  "error",
			"message": fmt.Sprintf("Failed to load image: %v", err),
			"data":    nil,
		})
	}

	filters := []gift.Filter{gift.Resize(width, height, gift.LanczosResampling)}
	if c.QueryBool("grayscale", false) {
		filters = append(filters, gift.Grayscale())
	}

	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	body, err := encodeImage(dst)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to encode thumbnail",
			"data":    nil,
		})
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(body)
}
