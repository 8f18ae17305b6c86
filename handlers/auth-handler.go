package handler

import (
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/datacollect-labs/annoserve/auth"
)

// Custom login handler that integrates with go-pkgz/auth
func Login(c *fiber.Ctx) error {
	type LoginData struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	type UserResponse struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
		Token    string `json:"token"`
	}

	input := new(LoginData)
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"status":  "error",
			"data":    nil,
		})
	}

	userModel, err := auth.GetUserByUsername(input.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Database error",
			"status":  "error",
			"data":    nil,
		})
	}

	if userModel == nil || !auth.CheckPasswordHash(input.Password, userModel.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid username or password",
			"status":  "error",
			"data":    nil,
		})
	}

	// Create JWT token using go-pkgz/auth
	user := token.User{
		ID:   userModel.ID,
		Name: userModel.Username,
		Attributes: map[string]interface{}{
			"role": userModel.Role,
		},
	}

	authService := auth.GetAuthService()
	claims := token.Claims{
		User: &user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authService.TokenService().Issuer,
			Audience:  []string{"annoserve"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	tokenStr, err := authService.TokenService().Token(claims)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Failed to generate token",
			"status":  "error",
			"data":    nil,
		})
	}

	// Set JWT cookie (optional, for web clients)
	c.Cookie(&fiber.Cookie{
		Name:     "JWT",
		Value:    tokenStr,
		Expires:  time.Now().Add(time.Hour * 24 * 7),
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	response := UserResponse{
		ID:       userModel.ID,
		Username: userModel.Username,
		Role:     userModel.Role,
		Token:    tokenStr,
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Login successful",
		"status":  "success",
		"data":    response,
	})
}

func Logout(c *fiber.Ctx) error {
	// Clear JWT cookie
	c.Cookie(&fiber.Cookie{
		Name:     "JWT",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logout successful",
		"status":  "success",
		"data":    nil,
	})
}
