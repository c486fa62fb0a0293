package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	LogLevel string

	OuraToken   string `validate:"required"`
	OuraBaseURL string `validate:"required,url"`
	OuraUserID  string

	ScanIntervalMinutes int `validate:"gte=5,lte=120"`

	DBPath        string `validate:"required"`
	MigrationsDir string `validate:"required"`

	APIKey    string `validate:"required"`
	JWTSecret string `validate:"required"`
	TokenTTL  time.Duration

	CORSOrigins []string

	EnableMQTT      bool
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string

	EnableWebhooks bool
	WebhookSecret  string

	EnableInsights    bool
	EnablePredictions bool
}

func Load() (Config, error) {
	// Missing .env is fine; the system environment still applies.
	_ = godotenv.Load()

	cfg := Config{
		Port:                getEnv("PORT", "8090"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		OuraToken:           getEnv("OURA_TOKEN", ""),
		OuraBaseURL:         getEnv("OURA_BASE_URL", "https://api.ouraring.com"),
		OuraUserID:          getEnv("OURA_USER_ID", ""),
		ScanIntervalMinutes: getEnvInt("SCAN_INTERVAL_MINUTES", 15),
		DBPath:              getEnv("DB_PATH", "./data/ouralink.db"),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "./migrations"),
		APIKey:              getEnv("API_KEY", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		TokenTTL:            time.Duration(getEnvInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		CORSOrigins:         getEnvList("CORS_ORIGINS", []string{"*"}),
		EnableMQTT:          getEnvBool("ENABLE_MQTT", false),
		MQTTBrokerURL:       getEnv("MQTT_BROKER_URL", "tcp://localhost:1883"),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", "ouralink"),
		MQTTTopicPrefix:     getEnv("MQTT_TOPIC_PREFIX", "anima/wellness/oura"),
		EnableWebhooks:      getEnvBool("ENABLE_WEBHOOKS", false),
		WebhookSecret:       getEnv("WEBHOOK_SECRET", ""),
		EnableInsights:      getEnvBool("ENABLE_INSIGHTS", false),
		EnablePredictions:   getEnvBool("ENABLE_PREDICTIONS", false),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMinutes) * time.Minute
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
