package database

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/datacollect-labs/annoserve/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	instance *gorm.DB
	once     sync.Once
)

func GetDB() *gorm.DB {
	once.Do(func() {
		instance = connectDB()
	})

	return instance
}

// SetDB replaces the singleton, used by tests to inject an in-memory store.
func SetDB(db *gorm.DB) {
	once.Do(func() {})
	instance = db
}

func connectDB() *gorm.DB {
	dsn := config.Config("DATABASE_URL")

	// TranslateError maps driver-specific failures onto gorm's sentinel
	// errors, which the handlers match on (gorm.ErrDuplicatedKey).
	db, err := gorm.Open(openDialector(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Get the underlying SQL DB object for connection pooling
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB object: %v", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	fmt.Println("Successfully connected to the annotation database!")
	return db
}

// openDialector picks the driver from the DSN shape: anything that looks like
// a file path runs on SQLite, everything else goes to Postgres.
func openDialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "file:") || strings.HasSuffix(dsn, ".db") || strings.HasSuffix(dsn, ".sqlite") {
		return sqlite.Open(dsn)
	}
	return postgres.Open(dsn)
}

// RetryRead runs a read-only operation, retrying once so a transient
// connectivity blip does not surface to the caller. Never use for writes.
func RetryRead(op func() error) error {
	if err := op(); err != nil {
		return op()
	}
	return nil
}

// MigrateModels runs auto migration for your models
func MigrateModels(models ...interface{}) error {
	db := GetDB()
	return db.AutoMigrate(models...)
}

func CloseDB() error {
	if instance != nil {
		sqlDB, err := instance.DB()
		if err != nil {
			return err
		}

		return sqlDB.Close()
	}

	return nil
}
