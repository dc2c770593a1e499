package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/punkyapp/diabetes-cockpit/internal/logger"
)

type Config struct {
	Nightscout NightscoutConfig
	Advice     AdviceConfig
	PINHash    string
	Telegram   TelegramConfig
	Archive    ArchiveConfig
	Redis      RedisConfig
	Alerts     AlertConfig
	Logger     LoggerConfig

	// RefreshIntervalMinutes is the upstream polling cadence.
	RefreshIntervalMinutes int
}

type NightscoutConfig struct {
	URL       string
	APISecret string
	Token     string
	UseToken  bool
}

type AdviceConfig struct {
	GeminiAPIKey string
	OpenAIAPIKey string
	Provider     string // "gemini" or "openai"
}

type TelegramConfig struct {
	Token  string
	ChatID int64
}

type ArchiveConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Enabled bool
	Host    string
	Port    string
}

// AlertConfig holds the mg/dL bands for caregiver alerts.
type AlertConfig struct {
	UrgentLow     float64
	Low           float64
	High          float64
	UrgentHigh    float64
	RepeatMinutes int
}

type LoggerConfig struct {
	Level      logger.LogLevel
	OutputPath string
	Format     string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	case "warn", "warning":
		return logger.LevelWarn
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}

func Load() (*Config, error) {
	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	return &Config{
		Nightscout: NightscoutConfig{
			URL:       os.Getenv("NIGHTSCOUT_URL"),
			APISecret: os.Getenv("NIGHTSCOUT_API_SECRET"),
			Token:     os.Getenv("NIGHTSCOUT_TOKEN"),
			UseToken:  getEnvBool("NIGHTSCOUT_USE_TOKEN"),
		},
		Advice: AdviceConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			Provider:     getEnvOrDefault("ADVICE_PROVIDER", "gemini"),
		},
		PINHash: os.Getenv("CAREGIVER_PIN_HASH"),
		Telegram: TelegramConfig{
			Token:  os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID: chatID,
		},
		Archive: ArchiveConfig{
			Enabled:  getEnvBool("ARCHIVE_ENABLED"),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
			DBName:   getEnvOrDefault("DB_NAME", "diabetes_cockpit"),
		},
		Redis: RedisConfig{
			Enabled: getEnvBool("REDIS_ENABLED"),
			Host:    getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:    getEnvOrDefault("REDIS_PORT", "6379"),
		},
		Alerts: AlertConfig{
			UrgentLow:     getEnvFloat("ALERT_URGENT_LOW", 55),
			Low:           getEnvFloat("ALERT_LOW", 70),
			High:          getEnvFloat("ALERT_HIGH", 180),
			UrgentHigh:    getEnvFloat("ALERT_URGENT_HIGH", 260),
			RepeatMinutes: getEnvInt("ALERT_REPEAT_MINUTES", 30),
		},
		Logger: LoggerConfig{
			Level:      parseLogLevel(getEnvOrDefault("LOG_LEVEL", "info")),
			OutputPath: getEnvOrDefault("LOG_OUTPUT", "logs/cockpit.log"),
			Format:     getEnvOrDefault("LOG_FORMAT", "json"),
		},
		RefreshIntervalMinutes: getEnvInt("REFRESH_INTERVAL_MINUTES", 5),
	}, nil
}
