package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	OCRProvider    string // "http" or "docconv"
	OCRAPIURL      string
	ReviewProvider string // "http" or "gemini"
	ReviewAPIURL   string
	AIAPIKey       string
	GenModel       string

	JWTSecret string
	Port      string

	PollInterval    time.Duration
	PipelineWorkers int
	MaxAttempts     int

	LogFormat string // "json" or "console"
	LogLevel  string
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "claimsmart-docs"),

		OCRProvider:    getEnv("OCR_PROVIDER", "http"),
		OCRAPIURL:      getEnv("OCR_API_URL", "https://insurance-ocr-api.onrender.com/extract-text"),
		ReviewProvider: getEnv("REVIEW_PROVIDER", "http"),
		ReviewAPIURL:   getEnv("REVIEW_API_URL", ""),
		AIAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GenModel:       getEnv("GEN_MODEL", "gemini-1.5-flash"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		Port:      getEnv("PORT", "8080"),

		PollInterval:    getEnvDuration("PIPELINE_POLL_INTERVAL", 5*time.Second),
		PipelineWorkers: getEnvInt("PIPELINE_WORKERS", 4),
		MaxAttempts:     getEnvInt("PIPELINE_MAX_ATTEMPTS", 3),

		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
