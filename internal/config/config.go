package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageLocal      = "local"
	StorageCloudinary = "cloudinary"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string
	SiteURL        string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPass      string
	DBName      string
	DBSSLMode   string
	RedisURL    string

	SecretKey         string
	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool
	PasswordResetTTL  time.Duration

	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	DefaultFromEmail string

	StorageDriver string
	MediaRoot     string
	MediaURL      string

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	RateLimitRegister time.Duration
	LoginMaxAttempts  int
	LoginLockout      time.Duration

	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:8080"),
		SiteURL:        strings.TrimRight(getEnv("SITE_URL", "http://localhost:8080"), "/"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPass:      os.Getenv("DB_PASS"),
		DBName:      getEnv("DB_NAME", "student_lms"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		SecretKey:         os.Getenv("SECRET_KEY"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "lms_session"),

		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		DefaultFromEmail: getEnv("DEFAULT_FROM_EMAIL", "Student LMS <noreply@studentlms.local>"),

		StorageDriver: getEnv("STORAGE_DRIVER", StorageLocal),
		MediaRoot:     getEnv("MEDIA_ROOT", "media"),
		MediaURL:      strings.TrimRight(getEnv("MEDIA_URL", "/media"), "/"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "student_lms"),

		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
	}

	var err error
	if cfg.SessionTTL, err = parseDuration(getEnv("SESSION_TTL", "336h")); err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
	}
	if cfg.PasswordResetTTL, err = parseDuration(getEnv("PASSWORD_RESET_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TTL: %w", err)
	}
	if cfg.RateLimitRegister, err = parseDuration(getEnv("RATE_LIMIT_REGISTER", "30s")); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_REGISTER: %w", err)
	}
	if cfg.LoginLockout, err = parseDuration(getEnv("LOGIN_LOCKOUT", "15m")); err != nil {
		return nil, fmt.Errorf("invalid LOGIN_LOCKOUT: %w", err)
	}
	if cfg.LoginMaxAttempts, err = strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "5")); err != nil {
		return nil, fmt.Errorf("invalid LOGIN_MAX_ATTEMPTS: %w", err)
	}
	if cfg.SMTPPort, err = strconv.Atoi(getEnv("SMTP_PORT", "587")); err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	if cfg.CookieSecure, err = strconv.ParseBool(getEnv("COOKIE_SECURE", "false")); err != nil {
		return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
	}

	if cfg.IsDevelopment() && cfg.SecretKey == "" {
		cfg.SecretKey = "dev-insecure-secret-key"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Validate checks values that have no safe default.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is required outside development")
	}
	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	if c.PasswordResetTTL <= 0 {
		return errors.New("PASSWORD_RESET_TTL must be positive")
	}
	if c.LoginMaxAttempts < 0 {
		return errors.New("LOGIN_MAX_ATTEMPTS must not be negative")
	}
	switch c.StorageDriver {
	case StorageLocal, StorageCloudinary:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	return nil
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from the
// DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName, c.DBSSLMode)
}

// OriginList splits ALLOWED_ORIGINS into trimmed, non-empty entries.
func (c *Config) OriginList() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// MeiliHost normalizes MEILISEARCH_HOST, accepting a bare host name.
func (c *Config) MeiliHost() string {
	host := c.MeiliSearchHost
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}
	if _, err := url.Parse(host); err != nil {
		return ""
	}
	return host
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
