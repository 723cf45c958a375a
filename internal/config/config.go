package config

import (
	"crypto/sha256"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	GinMode string

	// Database
	DatabaseURL string

	// Database Connection Pool
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxIdleTime int // in minutes
	DBConnMaxLifetime int // in minutes

	// Redis token cache (optional; empty URL disables caching)
	RedisURL      string
	TokenCacheTTL time.Duration

	// APNs signing credentials
	APNSKeyP8    string
	APNSKeyID    string
	APNSTeamID   string
	APNSBundleID string

	// Firebase (optional; enables FCM delivery for android tokens)
	FirebaseProjectID string
	FirebaseCredJSON  string

	// Push gateway HTTP client
	PushTimeoutSeconds int

	// Service auth (optional shared secret for API routes)
	ServiceAPIKey string

	// Server
	ServerShutdownTimeoutSeconds int

	// CORS
	CORSAllowedOrigins string

	// Logging
	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Database
		DatabaseURL: getEnvOrDefault("DATABASE_URL", "postgres://localhost/pushgate?sslmode=disable"),

		// Database Connection Pool
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 15),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxIdleTime: getEnvAsInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 1),
		DBConnMaxLifetime: getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30),

		// Redis token cache
		RedisURL:      getEnvOrDefault("REDIS_URL", ""),
		TokenCacheTTL: getEnvAsDuration("TOKEN_CACHE_TTL", 5*time.Minute),

		// APNs
		APNSKeyP8:    getEnvOrDefault("APNS_KEY_P8", ""),
		APNSKeyID:    getEnvOrDefault("APNS_KEY_ID", ""),
		APNSTeamID:   getEnvOrDefault("APNS_TEAM_ID", ""),
		APNSBundleID: getEnvOrDefault("APNS_BUNDLE_ID", ""),

		// Firebase
		FirebaseProjectID: getEnvOrDefault("FIREBASE_PROJECT_ID", ""),
		FirebaseCredJSON:  getEnvOrDefault("FIREBASE_CRED_JSON", ""),

		// Push gateway HTTP client
		PushTimeoutSeconds: getEnvAsInt("PUSH_TIMEOUT_SECONDS", 30),

		// Service auth
		ServiceAPIKey: getEnvOrDefault("SERVICE_API_KEY", ""),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 30),

		// CORS
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "debug"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	if AppConfig.APNSKeyP8 == "" || AppConfig.APNSKeyID == "" || AppConfig.APNSTeamID == "" || AppConfig.APNSBundleID == "" {
		log.Println("Warning: APNs credentials are missing. Please set APNS_KEY_P8, APNS_KEY_ID, APNS_TEAM_ID, and APNS_BUNDLE_ID environment variables.")
	} else {
		log.Println(
			"APNs configured:",
			"key_id=", AppConfig.APNSKeyID,
			"team_id=", AppConfig.APNSTeamID,
			"bundle_id=", AppConfig.APNSBundleID,
		)

		sum := sha256.Sum256([]byte(AppConfig.APNSKeyP8))
		log.Printf("APNs private key loaded (sha256=%x, bytes=%d)", sum, len(AppConfig.APNSKeyP8))
	}

	if AppConfig.FirebaseCredJSON == "" {
		log.Println("FCM delivery disabled: FIREBASE_CRED_JSON not set")
	}

	if AppConfig.ServiceAPIKey == "" {
		log.Println("Warning: SERVICE_API_KEY not set; API routes are unauthenticated.")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}
