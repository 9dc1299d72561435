package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr            string `mapstructure:"REDIS_ADDR"`
	RedisPassword        string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB         int    `mapstructure:"REDIS_CACHE_DB"`
	RedisReminderQueueDB int    `mapstructure:"REDIS_REMINDER_QUEUE_DB"`

	// Firebase push delivery.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Scheduling engine knobs.
	SlotDurationMinutes  int `mapstructure:"SLOT_DURATION_MINUTES"`
	ReminderLeadMinutes  int `mapstructure:"REMINDER_LEAD_MINUTES"`
	DoctorLockTimeoutSec int `mapstructure:"DOCTOR_LOCK_TIMEOUT_SEC"`

	// Session orchestration knobs.
	SessionIdleTimeoutSec int `mapstructure:"SESSION_IDLE_TIMEOUT_SEC"`
	MaxXRSessions         int `mapstructure:"MAX_XR_SESSIONS"`
	MaxMediaStreams       int `mapstructure:"MAX_MEDIA_STREAMS"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_REMINDER_QUEUE_DB", 3)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "serviceAccountKey.json")
	viper.SetDefault("SLOT_DURATION_MINUTES", 30)
	viper.SetDefault("REMINDER_LEAD_MINUTES", 30)
	viper.SetDefault("DOCTOR_LOCK_TIMEOUT_SEC", 5)
	viper.SetDefault("SESSION_IDLE_TIMEOUT_SEC", 30)
	viper.SetDefault("MAX_XR_SESSIONS", 16)
	viper.SetDefault("MAX_MEDIA_STREAMS", 256)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
