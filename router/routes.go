package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	handler "github.com/datacollect-labs/annoserve/handlers"
	"github.com/datacollect-labs/annoserve/middleware"
)

func SetupRoutes(app *fiber.App) {
	api := app.Group("/api", logger.New())
	api.Get("/hello", handler.Hello)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/login", handler.Login)
	auth.Post("/logout", handler.Logout)

	// Annotation workflow
	api.Get("/random_image", middleware.AuthMiddleware(), handler.RandomImage)
	api.Get("/image/:id", middleware.AuthMiddleware(), handler.GetImage)
	api.Get("/image/:id/thumbnail", middleware.AuthMiddleware(), handler.Thumbnail)
	api.Post("/annotate", middleware.AuthMiddleware(), handler.Annotate)
	api.Post("/report", middleware.AuthMiddleware(), handler.ReportImage)
	api.Post("/reject", middleware.AuthMiddleware(), handler.RejectImage)
	api.Post("/suggest_question", middleware.AuthMiddleware(), handler.SuggestQuestion)

	// Progress and export
	api.Get("/stats", middleware.AuthMiddleware(), handler.Stats)
	api.Get("/annotated_images", middleware.AuthMiddleware(), handler.AnnotatedImages)
	api.Get("/export/all", middleware.AuthMiddleware(), handler.ExportAll)

	// User management
	user := api.Group("/user", middleware.AuthMiddleware())
	user.Get("/:id", handler.GetUser)
	user.Get("/:id/progress", handler.GetUserProgress)
	user.Post("/", middleware.AdminOnly(), handler.CreateUser)
}
