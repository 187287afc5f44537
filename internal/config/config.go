package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort      string
	MySQLDSN        string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	JWTSecret       string
	EncryptKey      string
	LookupKey       string
	LockWaitTimeout time.Duration
	SwaggerHost     string
}

// Load builds Config from environment with sensible defaults.
// EncryptKey must be 16, 24 or 32 bytes (AES key); LookupKey keys the
// deterministic card-number hash and must differ from EncryptKey.
func Load() *Config {
	return &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		MySQLDSN:        getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/cardledger?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RedisPass:       os.Getenv("REDIS_PASSWORD"),
		JWTSecret:       getEnv("JWT_SECRET", "change-me"),
		EncryptKey:      getEnv("CARD_ENCRYPT_KEY", "0123456789abcdef0123456789abcdef"),
		LookupKey:       getEnv("CARD_LOOKUP_KEY", "change-me-lookup"),
		LockWaitTimeout: getEnvDuration("LOCK_WAIT_TIMEOUT", 3*time.Second),
		SwaggerHost:     os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
