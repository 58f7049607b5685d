package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal containers

	"github.com/isdelr/ender-blog/internal/database"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort    int
	DatabasePath  string
	DatabaseDSN   string // DatabasePath plus connection pragmas
	SessionSecret string
	CookieSecure  bool
	CORSOrigin    string
	LogLevel      string
	Location      *time.Location // time zone of displayed dates
	CodeStyle     string         // chroma style for code blocks
}

// Load loads configuration from the environment, reading a .env file first
// when one exists. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	_ = godotenv.Load() // ok if missing in prod
	return fromEnv()
}

func fromEnv() (*Config, error) {
	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT %q: %w", portStr, err)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		return nil, errors.New("SESSION_SECRET must be set")
	}

	secure, err := strconv.ParseBool(getEnv("COOKIE_SECURE", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
	}

	tz := getEnv("TIMEZONE", "Europe/Prague")
	location, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	pragmas := append([]string{}, database.DefaultPragmas...)
	if extra := os.Getenv("DATABASE_PRAGMAS"); extra != "" {
		for _, pragma := range strings.Split(extra, ",") {
			if pragma = strings.TrimSpace(pragma); pragma != "" {
				pragmas = append(pragmas, pragma)
			}
		}
	}
	dbPath := getEnv("DATABASE_PATH", "./blog.db")

	return &Config{
		ServerPort:    port,
		DatabasePath:  dbPath,
		DatabaseDSN:   database.DSN(dbPath, pragmas...),
		SessionSecret: secret,
		CookieSecure:  secure,
		CORSOrigin:    getEnv("CORS_ORIGIN", "http://localhost:3000"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Location:      location,
		CodeStyle:     getEnv("CODE_STYLE", "onedark"),
	}, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
