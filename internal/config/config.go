package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/taxrates/taxrates-api/internal/helpers"
)

// Config is the process configuration read from the environment.
type Config struct {
	Stage    string `validate:"required,oneof=prod dev local test"`
	LogLevel string `validate:"omitempty,oneof=debug info warn warning error fatal"`

	// Store locations. With the fs driver these are directories, with the
	// s3 driver they are key prefixes inside StoreBucket.
	StoreDriver   string `validate:"required,oneof=fs s3 memory"`
	DataDir       string `validate:"required"`
	StagingDir    string `validate:"required"`
	ChangelogPath string `validate:"required"`
	StoreBucket   string `validate:"required_if=StoreDriver s3"`
	AWSRegion     string
	S3Endpoint    string `validate:"omitempty,url"`
	S3PathStyle   bool
	// Static S3 keys for MinIO and other non-AWS endpoints
	S3AccessKeyID     string
	S3SecretAccessKey string `validate:"required_with=S3AccessKeyID"`

	PolicyFile  string
	HTTPTimeout time.Duration `validate:"gt=0"`

	// Report archive
	ArchiveDriver     string `validate:"required,oneof=none postgres sqlite"`
	DatabaseURL       string
	DatabaseSecretARN string
	SQLitePath        string `validate:"required_if=ArchiveDriver sqlite"`

	// Notifications
	SQSQueueURL     string
	ResendAPIKey    string
	ResendSecretARN string
	NotifyEmailFrom string   `validate:"omitempty,email"`
	NotifyEmailTo   []string `validate:"dive,email"`

	// HTTP API
	Port            string `validate:"required,numeric"`
	RateLimitMinute int    `validate:"gte=1"`
	RateLimitHour   int    `validate:"gtefield=RateLimitMinute"`
	WatchData       bool
	MetricsTextfile string
}

// Load reads .env (when present) and the environment into a validated Config.
func Load() (*Config, error) {
	// .env is optional; deployed stages configure the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Stage:             getEnv("STAGE", helpers.StageLocal),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		StoreDriver:       getEnv("STORE_DRIVER", "fs"),
		DataDir:           getEnv("DATA_DIR", "data"),
		StagingDir:        getEnv("STAGING_DIR", "staged-data"),
		ChangelogPath:     getEnv("CHANGELOG_PATH", "CHANGELOG.md"),
		StoreBucket:       os.Getenv("STORE_BUCKET"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3PathStyle:       getBool("S3_PATH_STYLE", false),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		PolicyFile:        os.Getenv("POLICY_FILE"),
		HTTPTimeout:       getDuration("HTTP_TIMEOUT", 30*time.Second),
		ArchiveDriver:     getEnv("ARCHIVE_DRIVER", "none"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DatabaseSecretARN: os.Getenv("DATABASE_URL_ARN"),
		SQLitePath:        os.Getenv("SQLITE_PATH"),
		SQSQueueURL:       os.Getenv("SQS_QUEUE_URL"),
		ResendAPIKey:      os.Getenv("RESEND_API_KEY"),
		ResendSecretARN:   os.Getenv("RESEND_API_KEY_ARN"),
		NotifyEmailFrom:   os.Getenv("NOTIFY_EMAIL_FROM"),
		NotifyEmailTo:     getList("NOTIFY_EMAIL_TO"),
		Port:              getEnv("PORT", "8080"),
		RateLimitMinute:   getInt("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitHour:     getInt("RATE_LIMIT_PER_HOUR", 100),
		WatchData:         getBool("WATCH_DATA", true),
		MetricsTextfile:   os.Getenv("METRICS_TEXTFILE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
