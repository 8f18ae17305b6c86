package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/datacollect-labs/annoserve/auth"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/models"
)

// AuthMiddleware validates the JWT and loads the authenticated user into the
// request locals, so handlers get an explicit user instead of reading
// ambient session state.
func AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var tokenStr string

		if authHeader != "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		} else {
			tokenStr = c.Cookies("JWT")
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"status":  "error",
				"message": "You are not authorized!",
				"data":    nil,
			})
		}

		claims, err := auth.GetAuthService().TokenService().Parse(tokenStr)
		if err != nil || claims.User == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid token",
				"status":  "error",
				"data":    nil,
			})
		}

		// Resolve the token against the users table so role changes take
		// effect without reissuing tokens.
		db := database.GetDB()
		var user models.User
		if err := db.First(&user, "id = ?", claims.User.ID).Error; err != nil {
			status := fiber.StatusInternalServerError
			message := "Database error"
			if errors.Is(err, gorm.ErrRecordNotFound) {
				status = fiber.StatusUnauthorized
				message = "Unknown user"
			}
			return c.Status(status).JSON(fiber.Map{
				"message": message,
				"status":  "error",
				"data":    nil,
			})
		}

		c.Locals("user", user)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// AdminOnly rejects requests from non-admin users; must run after
// AuthMiddleware.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := CurrentUser(c)
		if err != nil || !user.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"status":  "error",
				"message": "Admin access required",
				"data":    nil,
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user stored by AuthMiddleware.
func CurrentUser(c *fiber.Ctx) (models.User, error) {
	user, ok := c.Locals("user").(models.User)
	if !ok {
		return models.User{}, errors.New("no authenticated user in request context")
	}
	return user, nil
}
