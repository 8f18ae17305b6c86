package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/datacollect-labs/annoserve/annotation"
	"github.com/datacollect-labs/annoserve/auth"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/models"
)

func GetUser(c *fiber.Ctx) error {
	type UserResponse struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}

	id := c.Params("id")

	db := database.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "No user found with ID",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	userResponse := UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
	}

	return c.JSON(fiber.Map{"status": "success", "message": "User found", "data": userResponse})
}

// CreateUser registers a new annotator account. Admin only.
func CreateUser(c *fiber.Ctx) error {
	type NewUser struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}

	input := new(NewUser)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Wrong input data format",
			"data":    nil,
		})
	}

	if input.Username == "" || input.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Username and password are required",
			"data":    nil,
		})
	}

	role := input.Role
	if role == "" {
		role = models.RoleAnnotator
	}
	if role != models.RoleAnnotator && role != models.RoleAdmin {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"status":  "error",
			"message": "Role must be admin or annotator",
			"data":    nil,
		})
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to hash password",
			"data":    nil,
		})
	}

	db := database.GetDB()
	user := models.User{
		Username:     input.Username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"status":  "error",
				"message": "Username already taken",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Failed to create user",
			"data":    nil,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "success",
		"message": "User created successfully",
		"data": fiber.Map{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

// GetUserProgress reports completed/remaining counts for one user.
func GetUserProgress(c *fiber.Ctx) error {
	id := c.Params("id")

	db := database.GetDB()
	progress, err := annotation.GetUserProgress(db, id)
	if err != nil {
		if errors.Is(err, annotation.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"status":  "error",
				"message": "No user found with ID",
				"data":    nil,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status":  "error",
			"message": "Database error",
			"data":    nil,
		})
	}

	return c.JSON(fiber.Map{"status": "success", "message": "User progress", "data": progress})
}
