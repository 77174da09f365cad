package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	JWTSecret   string
	JWTLifetime time.Duration
	GinMode     string
	LogLevel    string
}

func Load() *Config {
	// Missing .env is fine; deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		ServerAddr:  getEnv("SERVER_ADDR", ":8080"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "3306"),
		DBUser:      getEnv("DB_USER", "pmuser"),
		DBPassword:  getEnv("DB_PASSWORD", "pmpassword"),
		DBName:      getEnv("DB_NAME", "project_management"),
		JWTSecret:   getEnv("JWT_SECRET", "default-secret-key-change-me"),
		JWTLifetime: getEnvHours("JWT_LIFETIME_HOURS", 24),
		GinMode:     getEnv("GIN_MODE", "debug"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvHours(key string, defaultHours int) time.Duration {
	value := os.Getenv(key)
	if value != "" {
		if hours, err := strconv.Atoi(value); err == nil && hours > 0 {
			return time.Duration(hours) * time.Hour
		}
	}
	return time.Duration(defaultHours) * time.Hour
}
