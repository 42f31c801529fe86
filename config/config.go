package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Storefront StorefrontConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	S3         S3Config
	Sync       SyncConfig
	Auth       AuthConfig
	Log        LogConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

// StorefrontConfig points at the remote shop API the engines reconcile against.
type StorefrontConfig struct {
	BaseURL          string
	Timeout          time.Duration
	EmptyCartRetry   int
	RetryDelay       time.Duration
	SendIdentityHint bool
}

// StorageConfig selects the persistent backend shared by every tab.
type StorageConfig struct {
	Backend string // redis, postgres, s3, memory
	Origin  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

type SyncConfig struct {
	RefreshSpec  string // cron spec for the periodic authenticated refresh
	SignalPacing time.Duration
	SignalBurst  int
}

type AuthConfig struct {
	TokenSecret string // optional HS256 secret; empty means the API verifies tokens
}

type LogConfig struct {
	Level  string
	Format string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8090"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Storefront: StorefrontConfig{
			BaseURL:          getEnv("STOREFRONT_API_URL", "https://laravel-api.fly.dev/api"),
			Timeout:          parseDuration(getEnv("STOREFRONT_TIMEOUT", "30s"), 30*time.Second),
			EmptyCartRetry:   parseInt(getEnv("STOREFRONT_EMPTY_CART_RETRIES", "2"), 2),
			RetryDelay:       parseDuration(getEnv("STOREFRONT_RETRY_DELAY", "1s"), time.Second),
			SendIdentityHint: parseBool(getEnv("STOREFRONT_IDENTITY_HINT", "true"), true),
		},
		Storage: StorageConfig{
			Backend: getEnv("STORAGE_BACKEND", "redis"),
			Origin:  getEnv("STORAGE_ORIGIN", "storefront"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "storefront"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		S3: S3Config{
			Region:          getEnv("AWS_REGION", "eu-west-3"),
			Bucket:          getEnv("AWS_S3_BUCKET", "storefront-state"),
			Prefix:          getEnv("AWS_S3_PREFIX", "storage"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Sync: SyncConfig{
			RefreshSpec:  getEnv("SYNC_REFRESH_SPEC", "@every 30s"),
			SignalPacing: parseDuration(getEnv("SYNC_REFRESH_INTERVAL", "500ms"), 500*time.Millisecond),
			SignalBurst:  parseInt(getEnv("SYNC_REFRESH_BURST", "2"), 2),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", ""),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate rejects settings the runtime cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "redis", "postgres", "s3", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.Storefront.BaseURL == "" {
		return fmt.Errorf("STOREFRONT_API_URL is required")
	}
	if c.Storefront.EmptyCartRetry < 0 {
		return fmt.Errorf("STOREFRONT_EMPTY_CART_RETRIES must not be negative")
	}
	return nil
}

// LogLevel falls back to debug in development, like the server binary did.
func (c *Config) LogLevel() string {
	if c.Log.Level != "" {
		return c.Log.Level
	}
	if c.Server.Environment == "development" {
		return "debug"
	}
	return "info"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for i := 0; i < len(s); {
		end := i
		for end < len(s) && s[end] != ',' {
			end++
		}
		result = append(result, s[i:end])
		i = end + 1
	}
	return result
}
