package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Auth    AuthConfig
	Log     LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	AllowedOrigins  []string
}

// StorageConfig holds the external store configuration. Empty PostgresURL
// selects the in-memory dev backend.
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int
	PostgresMinConns int
	PostgresTimeout  time.Duration

	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Avatar object storage (S3-compatible)
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// AuthConfig holds authentication and session configuration
type AuthConfig struct {
	// SessionTTL is the server-side lifetime for sessions without
	// remember-me; the cookie itself stays a browser-session cookie.
	SessionTTL time.Duration
	// RememberTTL applies to both cookie and server-side session when
	// remember-me is set.
	RememberTTL time.Duration
	// AccessTokenTTL bounds credential-store access tokens.
	AccessTokenTTL time.Duration
	// PreferenceCookieTTL bounds the mirrored preference cookie.
	PreferenceCookieTTL time.Duration

	SecureCookies            bool
	RequireEmailConfirmation bool
	LoginPath                string

	// Login/register rate limiting (per client IP)
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("TASKHUB_HOST", "0.0.0.0"),
			Port:            getEnv("TASKHUB_PORT", "8080"),
			ReadTimeout:     getEnvDuration("TASKHUB_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("TASKHUB_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("TASKHUB_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("TASKHUB_SHUTDOWN_TIMEOUT", 30*time.Second),
			MaxBodyBytes:    int64(getEnvInt("TASKHUB_MAX_BODY_BYTES", 1<<20)),
			AllowedOrigins:  []string{getEnv("TASKHUB_ALLOWED_ORIGIN", "*")},
		},
		Storage: StorageConfig{
			PostgresURL:      getEnv("TASKHUB_POSTGRES_URL", ""),
			PostgresMaxConns: getEnvInt("TASKHUB_POSTGRES_MAX_CONNS", 20),
			PostgresMinConns: getEnvInt("TASKHUB_POSTGRES_MIN_CONNS", 2),
			PostgresTimeout:  getEnvDuration("TASKHUB_POSTGRES_TIMEOUT", 5*time.Second),
			RedisURL:         getEnv("TASKHUB_REDIS_URL", ""),
			RedisPassword:    getEnv("TASKHUB_REDIS_PASSWORD", ""),
			RedisDB:          getEnvInt("TASKHUB_REDIS_DB", 0),
			S3Endpoint:       getEnv("TASKHUB_S3_ENDPOINT", ""),
			S3Region:         getEnv("TASKHUB_S3_REGION", "us-east-1"),
			S3Bucket:         getEnv("TASKHUB_S3_BUCKET", "taskhub-avatars"),
			S3AccessKey:      getEnv("TASKHUB_S3_ACCESS_KEY", ""),
			S3SecretKey:      getEnv("TASKHUB_S3_SECRET_KEY", ""),
			S3UsePathStyle:   getEnvBool("TASKHUB_S3_USE_PATH_STYLE", false),
		},
		Auth: AuthConfig{
			SessionTTL:               getEnvDuration("TASKHUB_SESSION_TTL", 24*time.Hour),
			RememberTTL:              getEnvDuration("TASKHUB_REMEMBER_TTL", 30*24*time.Hour),
			AccessTokenTTL:           getEnvDuration("TASKHUB_ACCESS_TOKEN_TTL", 24*time.Hour),
			PreferenceCookieTTL:      getEnvDuration("TASKHUB_PREFERENCE_COOKIE_TTL", 30*24*time.Hour),
			SecureCookies:            getEnvBool("TASKHUB_SECURE_COOKIES", false),
			RequireEmailConfirmation: getEnvBool("TASKHUB_REQUIRE_EMAIL_CONFIRMATION", false),
			LoginPath:                getEnv("TASKHUB_LOGIN_PATH", "/login"),
			LoginRateLimit:           getEnvInt("TASKHUB_LOGIN_RATE_LIMIT", 10),
			LoginRateWindow:          getEnvDuration("TASKHUB_LOGIN_RATE_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level: getEnv("TASKHUB_LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field invariants
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Auth.RememberTTL < c.Auth.SessionTTL {
		return fmt.Errorf("remember-me TTL must not be shorter than the session TTL")
	}
	if c.Auth.LoginRateLimit <= 0 {
		return fmt.Errorf("login rate limit must be positive")
	}
	if c.Storage.PostgresURL != "" && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required when postgres is configured")
	}
	return nil
}

// DevMode reports whether the service should run on in-memory stores
func (c *Config) DevMode() bool {
	return c.Storage.PostgresURL == ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
