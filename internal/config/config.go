package config

import (
	"os"
	"strconv"
	"time"

	"couplecare-crisis/common/config"
)

// Config crisis engine service configuration
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	HTTP struct {
		Addr string
	}

	Crisis struct {
		// SignalWindowDays trailing window for red-zone days, messages and disengagement
		SignalWindowDays int
		// ConflictWindowDays trailing window for conflict_frequency
		ConflictWindowDays int
		// DefaultCoolingOffHours used when a start request omits duration_hours
		DefaultCoolingOffHours int
		// InterventionTTLHours sets expires_at on fired interventions; 0 disables expiry
		InterventionTTLHours int

		Sweep struct {
			Cron       string // daily schedule, standard 5-field cron
			Workers    int    // bounded per-couple concurrency
			LeaseTTL   time.Duration
			SummaryTTL time.Duration
			KeyPrefix  string // Redis key prefix for lease and summary, e.g. "crisis:sweep:"
		}

		Notify struct {
			Stream       string // Redis stream for intervention events
			StreamMaxLen int64
		}

		Escalation struct {
			WebhookURL string
			Timeout    time.Duration
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment, falling back to defaults
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "couplecare"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 20
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.Addr = "localhost:6379"
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "couplecare-crisis"
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = "couplecare/crisis/"
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Crisis.SignalWindowDays = getEnvInt("CRISIS_SIGNAL_WINDOW_DAYS", 7)
	cfg.Crisis.ConflictWindowDays = getEnvInt("CRISIS_CONFLICT_WINDOW_DAYS", 7)
	cfg.Crisis.DefaultCoolingOffHours = getEnvInt("CRISIS_COOLING_OFF_HOURS", 24)
	cfg.Crisis.InterventionTTLHours = getEnvInt("CRISIS_INTERVENTION_TTL_HOURS", 0)

	cfg.Crisis.Sweep.Cron = getEnv("CRISIS_SWEEP_CRON", "0 3 * * *")
	cfg.Crisis.Sweep.Workers = getEnvInt("CRISIS_SWEEP_WORKERS", 8)
	cfg.Crisis.Sweep.LeaseTTL = time.Duration(getEnvInt("CRISIS_SWEEP_LEASE_SECONDS", 1800)) * time.Second
	cfg.Crisis.Sweep.SummaryTTL = time.Duration(getEnvInt("CRISIS_SWEEP_SUMMARY_HOURS", 48)) * time.Hour
	cfg.Crisis.Sweep.KeyPrefix = getEnv("CRISIS_SWEEP_KEY_PREFIX", "crisis:sweep:")

	cfg.Crisis.Notify.Stream = getEnv("CRISIS_NOTIFY_STREAM", "crisis:interventions")
	cfg.Crisis.Notify.StreamMaxLen = int64(getEnvInt("CRISIS_NOTIFY_STREAM_MAXLEN", 10000))

	cfg.Crisis.Escalation.WebhookURL = getEnv("CRISIS_ESCALATION_WEBHOOK_URL", "")
	cfg.Crisis.Escalation.Timeout = time.Duration(getEnvInt("CRISIS_ESCALATION_TIMEOUT_SECONDS", 10)) * time.Second

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if cfg.Crisis.Sweep.Workers <= 0 {
		cfg.Crisis.Sweep.Workers = 1
	}
	if cfg.Crisis.SignalWindowDays <= 0 {
		cfg.Crisis.SignalWindowDays = 7
	}
	if cfg.Crisis.ConflictWindowDays <= 0 {
		cfg.Crisis.ConflictWindowDays = 7
	}
	if cfg.Crisis.DefaultCoolingOffHours <= 0 {
		cfg.Crisis.DefaultCoolingOffHours = 24
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return i
}
