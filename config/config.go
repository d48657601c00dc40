package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

type Config struct {
	AppPort string
	AppMode string

	StoreBackend       string
	FirestoreProjectID string

	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	ProfileCacheTTL time.Duration

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string
	S3PresignTTL time.Duration

	JWTSecret string

	GiphyAPIKey string
	GiphyLimit  int

	InviteBaseURL       string
	RecoveryCooldown    time.Duration
	NoticeTTL           time.Duration
	DiagnosticsSuppress []string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort: getEnv("APP_PORT", "8080"),
		AppMode: getEnv("APP_MODE", "development"),

		StoreBackend:       getEnv("STORE_BACKEND", StoreFirestore),
		FirestoreProjectID: getEnv("FIRESTORE_PROJECT_ID", ""),

		RedisHost:       getEnv("REDIS_HOST", ""),
		RedisPort:       getEnv("REDIS_PORT", "6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvAsInt("REDIS_DB", 0),
		ProfileCacheTTL: getEnvAsDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),
		S3PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 7*24*time.Hour),

		JWTSecret: getEnv("JWT_SECRET", "change-me"),

		GiphyAPIKey: getEnv("GIPHY_API_KEY", ""),
		GiphyLimit:  getEnvAsInt("GIPHY_LIMIT", 24),

		InviteBaseURL:       strings.TrimRight(getEnv("INVITE_BASE_URL", "http://localhost:3000"), "/"),
		RecoveryCooldown:    getEnvAsDuration("RECOVERY_COOLDOWN", time.Second),
		NoticeTTL:           getEnvAsDuration("NOTICE_TTL", 3*time.Second),
		DiagnosticsSuppress: getEnvAsList("DIAGNOSTICS_SUPPRESS"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
