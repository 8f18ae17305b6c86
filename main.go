package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/datacollect-labs/annoserve/auth"
	"github.com/datacollect-labs/annoserve/config"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/importer"
	"github.com/datacollect-labs/annoserve/models"
	"github.com/datacollect-labs/annoserve/router"
)

func main() {
	db := database.GetDB()

	// Run migrations
	err := database.MigrateModels(
		&models.User{},
		&models.Image{},
		&models.Assignment{},
		&models.Annotation{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Bootstrap the admin account when configured
	if username := os.Getenv("ADMIN_USERNAME"); username != "" {
		if err := auth.EnsureAdmin(db, username, config.Config("ADMIN_PASSWORD")); err != nil {
			log.Fatalf("Failed to create admin user: %v", err)
		}
	}

	// Load the image manifest on first start
	manifest := config.ConfigOr("IMAGES_MANIFEST", "images.json")
	if _, err := importer.LoadImages(db, manifest); err != nil {
		log.Fatalf("Failed to import images: %v", err)
	}

	auth.SetupAuthService()

	app := fiber.New()
	router.SetupRoutes(app)

	// close the database connection
	defer func() {
		if err := database.CloseDB(); err != nil {
			fmt.Printf("Error closing the database connection: %v", err)
			log.Fatal(err)
		}
	}()

	addr := ":" + config.ConfigOr("PORT", "3000")
	fmt.Printf("Server is listening at %s\n", addr)
	log.Fatal(app.Listen(addr))
}
