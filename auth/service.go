package auth

import (
	"errors"
	"log"
	"time"

	"github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/provider"
	"github.com/go-pkgz/auth/v2/token"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/datacollect-labs/annoserve/config"
	"github.com/datacollect-labs/annoserve/database"
	"github.com/datacollect-labs/annoserve/models"
)

// Global auth service instance
var authService *auth.Service

// Initialize auth service
func SetupAuthService() *auth.Service {
	options := auth.Opts{
		SecretReader: token.SecretFunc(func(id string) (string, error) {
			return config.Config("JWT_SECRET"), nil
		}),
		TokenDuration:  time.Hour * 24,
		CookieDuration: time.Hour * 24 * 7,
		Issuer:         "annoserve",
		URL:            config.ConfigOr("APP_URL", "http://localhost:3000"),
		AvatarStore:    avatar.NewLocalFS("/tmp/avatars"),
	}

	service := auth.NewService(options)

	// Direct provider backed by the users table
	service.AddDirectProvider("local", provider.CredCheckerFunc(func(identity, password string) (bool, error) {
		return ValidateUserCredentials(identity, password)
	}))

	authService = service
	return service
}

// Get the auth service instance
func GetAuthService() *auth.Service {
	return authService
}

// ValidateUserCredentials checks a username/password pair against the users table
func ValidateUserCredentials(username, password string) (bool, error) {
	user, err := GetUserByUsername(username)
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil // User not found
	}

	if !CheckPasswordHash(password, user.PasswordHash) {
		return false, nil // Invalid password
	}

	return true, nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(hashed), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func GetUserByUsername(username string) (*models.User, error) {
	db := database.GetDB()
	var user models.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// EnsureAdmin creates the bootstrap admin account if no user with that
// username exists yet. Called at startup with ADMIN_USERNAME/ADMIN_PASSWORD.
func EnsureAdmin(db *gorm.DB, username, password string) error {
	var existing models.User
	err := db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil // already bootstrapped
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:     username,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Admin user %q created", username)
	return nil
}
