// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	PDF      PDFConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings for the supported drivers.
type DatabaseConfig struct {
	Driver   string // postgres, sqlite or mysql
	RawDSN   string // DATABASE_DSN, wins over the discrete fields
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Debug    bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	Seed       bool
	GarageName string
}

// PDFConfig selects the job-sheet rendering engine.
type PDFConfig struct {
	Engine  string // maroto or wkhtmltopdf
	Bin     string
	TempDir string
}

// RedisConfig enables distributed per-job locking when Addr is set.
type RedisConfig struct {
	Addr    string
	LockTTL time.Duration
}

// AuthConfig gates the admin with a single staff credential.
// An empty PasswordHash disables the gate.
type AuthConfig struct {
	User         string
	PasswordHash string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
}

// DSN returns the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	switch d.Driver {
	case "sqlite":
		return d.DBName
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			d.User, d.Password, d.Host, d.Port, d.DBName,
		)
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
		)
	}
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	driver := getEnv("DB_DRIVER", "sqlite")
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 30),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:   driver,
			RawDSN:   getEnv("DATABASE_DSN", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", defaultPort(driver)),
			User:     getEnv("DB_USER", "garage"),
			Password: getEnv("DB_PASSWORD", "garage123"),
			DBName:   getEnv("DB_NAME", defaultDBName(driver)),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Debug:    getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", false),
			GarageName: getEnv("GARAGE_NAME", "Garage"),
		},
		PDF: PDFConfig{
			Engine:  getEnv("PDF_ENGINE", "maroto"),
			Bin:     getEnv("PDF_ENGINE_BIN", "wkhtmltopdf"),
			TempDir: getEnv("JOBSHEET_TEMP_DIR", os.TempDir()),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", ""),
			LockTTL: getEnvDuration("LOCK_TTL", 10*time.Second),
		},
		Auth: AuthConfig{
			User:         getEnv("ADMIN_USER", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func defaultPort(driver string) int {
	if driver == "mysql" {
		return 3306
	}
	return 5432
}

func defaultDBName(driver string) string {
	if driver == "sqlite" {
		return "garage.db"
	}
	return "garage"
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
