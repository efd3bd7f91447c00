package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// OAuth holds the Google API client credentials.
type OAuth struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Account      string
}

// Config holds the application configuration
type Config struct {
	ServerHost string
	ServerPort string

	DatabaseDriver   string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabaseSSLMode  string
	SQLitePath       string

	OAuth           OAuth
	ApplicationName string
	// ShareCopies grants anyone-with-the-link read access to merged copies.
	ShareCopies bool
	// AllowedOrigins limits CORS to these origins; empty allows any.
	AllowedOrigins []string

	LogVerbosity int
	LogFile      string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		ServerHost: getEnv("SERVER_HOST", ""),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		DatabaseDriver:   getEnv("DB_DRIVER", DriverPostgres),
		DatabaseHost:     getEnv("DB_HOST", "localhost"),
		DatabasePort:     getEnv("DB_PORT", "5432"),
		DatabaseUser:     getEnv("DB_USER", "postgres"),
		DatabasePassword: getEnv("DB_PASSWORD", ""),
		DatabaseName:     getEnv("DB_NAME", "docmerge"),
		DatabaseSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath:       getEnv("SQLITE_PATH", "docmerge.db"),

		OAuth: OAuth{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/callback"),
			Account:      getEnv("GOOGLE_ACCOUNT", "default"),
		},
		ApplicationName: getEnv("APPLICATION_NAME", "LawDoc"),
		ShareCopies:     getEnvBool("SHARE_COPIES", true),
		AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),

		LogVerbosity: getEnvInt("LOG_VERBOSITY", 1),
		LogFile:      getEnv("LOG_FILE", ""),
	}
}

// GetServerAddr returns the listen address
func (c *Config) GetServerAddr() string {
	return c.ServerHost + ":" + c.ServerPort
}

// GetDatabaseConnectionString returns the data source name for the configured driver
func (c *Config) GetDatabaseConnectionString() string {
	if c.DatabaseDriver == DriverSQLite {
		return c.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost, c.DatabasePort, c.DatabaseUser, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DatabaseDriver))
	}
	if c.OAuth.ClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.OAuth.ClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required"))
	}
	if c.LogVerbosity < 0 {
		errs = append(errs, errors.New("LOG_VERBOSITY cannot be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && strings.TrimSpace(val) != "" {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

func getEnvList(key string) []string {
	var list []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
