package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	MongoDatabase      string
	AppEnv             string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	JWTTTL             time.Duration
	FrontendURL        string
	LogLevel           string
	TrustProxy         bool // honor X-Forwarded-For / X-Real-IP

	ActivityWindowDays int
	RecentVisitsLimit  int
	TrackTimeout       time.Duration

	StorageDriver string // "local" or "s3"
	UploadDir     string
	S3            S3Config
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "file:db.sqlite"),
		MongoDatabase:      getEnv("MONGO_DATABASE", "linkbio"),
		AppEnv:             getEnv("APP_ENV", "local"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		JWTTTL:             getDuration("JWT_TTL", 24*time.Hour),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		TrustProxy:         getBool("TRUST_PROXY", false),

		ActivityWindowDays: getInt("ACTIVITY_WINDOW_DAYS", 180),
		RecentVisitsLimit:  getInt("RECENT_VISITS_LIMIT", 10),
		TrackTimeout:       getDuration("TRACK_TIMEOUT", 2*time.Second),

		StorageDriver: getEnv("STORAGE_DRIVER", "local"),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		S3: S3Config{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			PublicURL:       getEnv("S3_PUBLIC_URL", ""),
		},
	}
}

// ActivityWindow is the trailing period covered by activity reports
func (c *Config) ActivityWindow() time.Duration {
	return time.Duration(c.ActivityWindowDays) * 24 * time.Hour
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
