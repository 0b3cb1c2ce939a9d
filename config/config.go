package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	ListenAddr string

	FFmpegPath     string
	AudioBitrate   string // e.g., "192k"
	HLSSegmentTime string // nominal segment length in seconds, e.g., "10"
	MaxDuration    int    // maximum accepted track length in seconds

	// MinIO object storage
	MinioEndpoint       string
	MinioPublicEndpoint string // base used when templating retrieval URLs
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioRegion         string
	MinioUseSSL         bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	LogLevel string
	LogFile  string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvBool gets an environment variable as bool or returns a default value.
func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on existing environment variables and defaults.")
	}

	return &Config{
		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		FFmpegPath:     getEnv("FFMPEG_PATH", "ffmpeg"),
		AudioBitrate:   getEnv("AUDIO_BITRATE", "192k"),
		HLSSegmentTime: getEnv("HLS_SEGMENT_TIME", "10"),
		MaxDuration:    getEnvInt("MAX_TRACK_DURATION", 720),

		MinioEndpoint:       getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioPublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", "http://127.0.0.1:8080"),
		MinioAccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:      os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:         getEnv("MINIO_BUCKET", "sacraltrack"),
		MinioRegion:         getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:         getEnvBool("MINIO_USE_SSL", false),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"), // no hardcoded default for credentials
		DBName:     getEnv("DB_NAME", "sacraltrack"),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		JWTSecret: getEnv("JWT_SECRET", "sacral-track-dev-secret"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
}
