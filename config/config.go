package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

func loadDotEnv() {
	loadEnv.Do(func() {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
		}
	})
}

// Config returns a required environment variable, exiting when it is unset.
func Config(envVar string) string {
	loadDotEnv()

	envVarValue := os.Getenv(envVar)
	if envVarValue == "" {
		fmt.Fprintf(os.Stderr, "%s not set\n", envVar)
		os.Exit(1)
	}

	return envVarValue
}

// ConfigOr returns an optional environment variable, falling back to the
// given default when unset.
func ConfigOr(envVar, fallback string) string {
	loadDotEnv()

	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

// ConfigBool parses an optional boolean flag such as REPORT_COUNTS_ANNOTATION.
func ConfigBool(envVar string, fallback bool) bool {
	loadDotEnv()

	v := os.Getenv(envVar)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s is not a boolean: %q\n", envVar, v)
		return fallback
	}
	return parsed
}
