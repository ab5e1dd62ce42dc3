// Package config provides configuration loading for the reels service and
// its operator CLI. Settings come from the environment, with optional .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// init loads .env and then .env.local when they exist. godotenv never
// overrides variables already set, so the process environment wins.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the reels service.
type Config struct {
	Env   string // Deployment environment (dev, staging, prod)
	Port  string // HTTP server port
	AppID string // Namespace segment of every document path

	// Document store
	Store         string // memory, postgres or redis; empty picks from DatabaseDSN
	DatabaseDSN   string // PostgreSQL connection string
	RedisAddr     string // Redis host:port
	RedisPassword string
	RedisDB       int

	NATSURL string // NATS server URL; empty disables event publishing

	// Media storage
	S3Endpoint       string
	S3Region         string
	S3Bucket         string
	S3AccessKey      string
	S3SecretKey      string
	MaxMediaSize     int64    // Maximum upload size in bytes
	AllowedMimeTypes []string // Allowed MIME types for uploads

	// Authentication
	JWTIssuer   string // Expected issuer for JWT validation
	JWTAudience string // Expected audience for JWT validation
	IdentityURL string // Identity service URL used to confirm token subjects

	// Feed
	SwipeThreshold float64 // Minimum vertical swipe distance
	CatalogPath    string  // Optional YAML catalog of fallback/seed videos
	SeedOnEmpty    bool    // Seed the catalog when the videos collection is empty

	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort           = "8080"
	defaultEnv            = "dev"
	defaultAppID          = "asa1db"
	defaultS3Region       = "us-east-1"
	defaultSwipeThreshold = 50
	defaultMaxMediaSize   = 100 * 1024 * 1024
)

// Load reads environment variables and produces a Config. It only fails on
// malformed values; use RequireAuth to enforce the daemon's auth settings.
func Load() (Config, error) {
	cfg := Config{
		Env:           getEnv("REELS_ENV", defaultEnv),
		Port:          getEnv("REELS_PORT", defaultPort),
		AppID:         getEnv("REELS_APP_ID", defaultAppID),
		Store:         os.Getenv("REELS_STORE"),
		DatabaseDSN:   os.Getenv("REELS_DB_DSN"),
		RedisAddr:     os.Getenv("REELS_REDIS_ADDR"),
		RedisPassword: os.Getenv("REELS_REDIS_PASSWORD"),
		NATSURL:       os.Getenv("REELS_NATS_URL"),
		S3Endpoint:    os.Getenv("REELS_S3_ENDPOINT"),
		S3Region:      getEnv("REELS_S3_REGION", defaultS3Region),
		S3Bucket:      os.Getenv("REELS_S3_BUCKET"),
		S3AccessKey:   os.Getenv("REELS_S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("REELS_S3_SECRET_KEY"),
		JWTIssuer:     os.Getenv("REELS_JWT_ISSUER"),
		JWTAudience:   os.Getenv("REELS_JWT_AUDIENCE"),
		IdentityURL:   os.Getenv("IDENTITY_URL"),
		CatalogPath:   os.Getenv("REELS_CATALOG_PATH"),
		SeedOnEmpty:   true,

		MaxMediaSize:     defaultMaxMediaSize,
		AllowedMimeTypes: []string{"video/mp4", "video/webm", "video/quicktime"},
		SwipeThreshold:   defaultSwipeThreshold,
	}

	switch cfg.Store {
	case "", "memory", "postgres", "redis":
	default:
		return cfg, fmt.Errorf("REELS_STORE must be memory, postgres or redis, got %q", cfg.Store)
	}

	if v, ok := os.LookupEnv("REELS_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("REELS_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}

	if v, ok := os.LookupEnv("REELS_MAX_MEDIA_SIZE"); ok {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("REELS_MAX_MEDIA_SIZE: %w", err)
		}
		cfg.MaxMediaSize = size
	}

	if v, ok := os.LookupEnv("REELS_ALLOWED_MIME_TYPES"); ok {
		cfg.AllowedMimeTypes = splitList(v)
	}

	if v, ok := os.LookupEnv("REELS_SWIPE_THRESHOLD"); ok {
		th, err := strconv.ParseFloat(v, 64)
		if err != nil || th <= 0 {
			return cfg, fmt.Errorf("REELS_SWIPE_THRESHOLD must be a positive number, got %q", v)
		}
		cfg.SwipeThreshold = th
	}

	if v, ok := os.LookupEnv("REELS_SEED_ON_EMPTY"); ok {
		cfg.SeedOnEmpty = parseBool(v)
	}

	if v, ok := os.LookupEnv("REELS_CORS_ALLOWED_ORIGINS"); ok {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	return cfg, nil
}

// RequireAuth reports an error unless the JWT issuer and audience are set.
func (c Config) RequireAuth() error {
	if c.JWTIssuer == "" {
		return fmt.Errorf("REELS_JWT_ISSUER is required")
	}
	if c.JWTAudience == "" {
		return fmt.Errorf("REELS_JWT_AUDIENCE is required")
	}
	return nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// parseBool converts a string to a boolean value, returning false if parsing fails
func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
