package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration, read from the environment
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Models   ModelsConfig
	Auth     AuthConfig
	Uploads  UploadsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Driver          string
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectRetries  int
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// ModelsConfig locates the model artifacts
type ModelsConfig struct {
	Dir string
	// DiseaseSeed seeds the mock disease classifier; 0 means time-based.
	DiseaseSeed uint64
}

// AuthConfig holds session and password hashing settings
type AuthConfig struct {
	SessionTTL time.Duration
	BcryptCost int
}

// UploadsConfig limits image uploads
type UploadsConfig struct {
	MaxImageBytes int64
}

// LoadConfig reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return fromEnv()
}

func fromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080, &errs),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second, &errs),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second, &errs),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second, &errs),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432, &errs),
			User:            getEnv("DB_USER", "farm_advisor"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "farm_advisor"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			SQLitePath:      getEnv("DB_SQLITE_PATH", "farm_advisor.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25, &errs),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5, &errs),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute, &errs),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute, &errs),
			ConnectRetries:  getEnvInt("DB_CONNECT_RETRIES", 5, &errs),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Models: ModelsConfig{
			Dir:         getEnv("MODEL_DIR", "./artifacts"),
			DiseaseSeed: uint64(getEnvInt("DISEASE_SEED", 0, &errs)),
		},
		Auth: AuthConfig{
			SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour, &errs),
			BcryptCost: getEnvInt("BCRYPT_COST", 10, &errs),
		},
		Uploads: UploadsConfig{
			MaxImageBytes: int64(getEnvInt("MAX_IMAGE_BYTES", 10<<20, &errs)),
		},
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		applyDatabaseURL(&cfg.Database, url)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return cfg, nil
}

// applyDatabaseURL lets a single DATABASE_URL select both driver and DSN.
// Heroku-style postgres:// URLs are normalized to postgresql://.
func applyDatabaseURL(db *DatabaseConfig, url string) {
	switch {
	case strings.HasPrefix(url, "postgres://"):
		db.Driver = "postgres"
		db.URL = "postgresql://" + strings.TrimPrefix(url, "postgres://")
	case strings.HasPrefix(url, "postgresql://"):
		db.Driver = "postgres"
		db.URL = url
	case strings.HasPrefix(url, "sqlite://"):
		db.Driver = "sqlite"
		db.SQLitePath = strings.TrimPrefix(url, "sqlite://")
	default:
		db.URL = url
	}
}

// Validate checks the configuration for values the process cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" && c.Database.Host == "" {
			errs = append(errs, errors.New("DB_HOST or DATABASE_URL is required for postgres"))
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("DB_SQLITE_PATH is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver))
	}

	if c.Database.MaxOpenConns < 1 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Logging.Level))
	}

	if c.Models.Dir == "" {
		errs = append(errs, errors.New("MODEL_DIR is required"))
	}

	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}

	// bcrypt accepts 4..31
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost))
	}

	if c.Uploads.MaxImageBytes <= 0 {
		errs = append(errs, errors.New("MAX_IMAGE_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
