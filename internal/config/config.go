package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	ServerPort  string
	AppURL      string
	Timezone    *time.Location

	DatabaseDriver string
	DatabaseURL    string
	RedisURL       string

	SessionSecret string
	SessionTTL    time.Duration
	IPSalt        string

	// Daily prompt
	QuoteAPIURL       string
	QuoteFetchTimeout time.Duration
	QuotesPath        string
	QuoteEpoch        time.Time

	// Stories
	StoryMaxWords     int
	StoryRequireQuote bool

	// Login throttle
	LoginMaxFailures int
	LoginBaseLock    time.Duration

	// Password reset
	ResetTokenTTL  time.Duration
	MailOutboxPath string

	// Avatars
	AvatarStorage   string
	AvatarDir       string
	AvatarURLPrefix string
	AvatarMaxBytes  int64
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3PublicURL     string

	CORSAllowedOrigins []string

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
}

func Load() *Config {
	// Try to load .env file, but don't fail if it doesn't exist
	// (Docker containers use environment variables directly)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	tz, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		log.Printf("Invalid APP_TIMEZONE, using UTC: %v", err)
		tz = time.UTC
	}

	epoch, err := time.Parse("2006-01-02", getEnv("QUOTE_EPOCH", "2025-01-01"))
	if err != nil {
		log.Printf("Invalid QUOTE_EPOCH, using 2025-01-01: %v", err)
		epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", ":8080"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		Timezone:    tz,

		DatabaseDriver: getEnv("DB_DRIVER", "postgres"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", "168h"),
		IPSalt:        os.Getenv("APP_IP_SALT"),

		QuoteAPIURL:       getEnv("LOCAL_QUOTE_API_URL", "http://localhost:8080/api/quotes/random"),
		QuoteFetchTimeout: getEnvAsDuration("QUOTE_FETCH_TIMEOUT", "3s"),
		QuotesPath:        getEnv("QUOTES_LOCAL_PATH", "data/quotes.json"),
		QuoteEpoch:        epoch,

		StoryMaxWords:     getEnvAsInt("STORY_MAX_WORDS", 500),
		StoryRequireQuote: getEnvAsBool("STORY_REQUIRE_QUOTE", false),

		LoginMaxFailures: getEnvAsInt("LOGIN_MAX_FAILURES", 5),
		LoginBaseLock:    getEnvAsDuration("LOGIN_BASE_LOCK", "60s"),

		ResetTokenTTL:  getEnvAsDuration("RESET_TOKEN_TTL", "1h"),
		MailOutboxPath: getEnv("MAIL_OUTBOX_PATH", "data/mail_outbox.log"),

		AvatarStorage:   getEnv("AVATAR_STORAGE", "local"),
		AvatarDir:       getEnv("AVATAR_DIR", "data/uploads/avatars"),
		AvatarURLPrefix: strings.TrimRight(getEnv("AVATAR_URL_PREFIX", "/uploads/avatars"), "/"),
		AvatarMaxBytes:  int64(getEnvAsInt("AVATAR_MAX_BYTES", 2*1024*1024)),
		S3Endpoint:      os.Getenv("S3_ENDPOINT"),
		S3Region:        getEnv("S3_REGION", "us-east-1"),
		S3Bucket:        os.Getenv("S3_BUCKET"),
		S3AccessKey:     os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:     os.Getenv("S3_SECRET_KEY"),
		S3PublicURL:     strings.TrimRight(os.Getenv("S3_PUBLIC_URL"), "/"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 120),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
	}

	return cfg
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 characters"))
	}
	if c.IPSalt == "" {
		errs = append(errs, errors.New("APP_IP_SALT is required"))
	}
	if c.StoryMaxWords <= 0 {
		errs = append(errs, errors.New("STORY_MAX_WORDS must be positive"))
	}
	if c.LoginMaxFailures <= 0 {
		errs = append(errs, errors.New("LOGIN_MAX_FAILURES must be positive"))
	}
	switch c.AvatarStorage {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET is required when AVATAR_STORAGE=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("AVATAR_STORAGE must be local or s3, got %q", c.AvatarStorage))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvAsInt retrieves environment variable as int with default value
func getEnvAsInt(key string, defaultVal int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %d", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnvAsBool(key string, defaultVal bool) bool {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %t", key, defaultVal)
		return defaultVal
	}
	return val
}

// getEnvAsDuration retrieves environment variable as duration with default value
func getEnvAsDuration(key string, defaultVal string) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		valStr = defaultVal
	}
	duration, err := time.ParseDuration(valStr)
	if err != nil {
		log.Printf("Invalid %s value, using default: %s", key, defaultVal)
		duration, _ = time.ParseDuration(defaultVal)
	}
	return duration
}

// getEnvAsList splits a comma separated variable, dropping empty items.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
