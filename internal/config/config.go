package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Device transports understood by the companion.
const (
	TransportLog   = "log"
	TransportKafka = "kafka"
)

type AppConfig struct {
	Port string

	// Host local storage holding the persisted settings blob.
	SettingsPath string
	SettingsKey  string

	OpenWeatherBaseURL string
	// HTTPTimeout bounds one weather request. Zero means no timeout.
	HTTPTimeout    time.Duration
	CircuitBreaker bool

	// RefreshInterval mirrors the watchface tick (0 = disabled).
	RefreshInterval time.Duration

	DeviceID        string
	DeviceTransport string

	KafkaBrokers     []string
	KafkaOutboxTopic string
	KafkaInboxTopic  string
	KafkaGroupID     string

	// Delivery history retention.
	StoreMaxHistory int           // max number of deliveries per city (0 = unlimited)
	StoreMaxAge     time.Duration // max age of deliveries (0 = unlimited)

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file found")
	}
	cfg := &AppConfig{}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.SettingsPath = getenvDefault("SETTINGS_PATH", "data/localstorage.json")
	cfg.SettingsKey = getenvDefault("SETTINGS_KEY", "clay-settings")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "http://api.openweathermap.org/data/2.5/weather")

	timeout, err := time.ParseDuration(getenvDefault("WEATHER_HTTP_TIMEOUT", "0s"))
	if err != nil || timeout < 0 {
		return nil, fmt.Errorf("invalid WEATHER_HTTP_TIMEOUT: %q", os.Getenv("WEATHER_HTTP_TIMEOUT"))
	}
	cfg.HTTPTimeout = timeout

	breaker, err := getenvBool("WEATHER_CIRCUIT_BREAKER", false)
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_CIRCUIT_BREAKER: %w", err)
	}
	cfg.CircuitBreaker = breaker

	// Watchface asks for weather every 30 minutes.
	interval, err := time.ParseDuration(getenvDefault("REFRESH_INTERVAL", "30m"))
	if err != nil || interval < 0 {
		return nil, fmt.Errorf("invalid REFRESH_INTERVAL: %q", os.Getenv("REFRESH_INTERVAL"))
	}
	cfg.RefreshInterval = interval

	cfg.DeviceID = getenvDefault("DEVICE_ID", "boris")
	cfg.DeviceTransport = strings.ToLower(getenvDefault("DEVICE_TRANSPORT", TransportLog))
	switch cfg.DeviceTransport {
	case TransportLog, TransportKafka:
	default:
		return nil, fmt.Errorf("invalid DEVICE_TRANSPORT %q: must be %q or %q", cfg.DeviceTransport, TransportLog, TransportKafka)
	}

	cfg.KafkaBrokers = parseList(getenvDefault("KAFKA_BROKERS", "localhost:9092"))
	cfg.KafkaOutboxTopic = getenvDefault("KAFKA_OUTBOX_TOPIC", "appmessage-outbox")
	cfg.KafkaInboxTopic = getenvDefault("KAFKA_INBOX_TOPIC", "appmessage-inbox")
	cfg.KafkaGroupID = getenvDefault("KAFKA_GROUP_ID", "boris-companion")
	if cfg.DeviceTransport == TransportKafka && len(cfg.KafkaBrokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS is required when DEVICE_TRANSPORT=kafka")
	}

	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 48) // one day at 30-minute refreshes

	maxAge, err := time.ParseDuration(getenvDefault("STORE_MAX_AGE", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	cfg.StoreMaxAge = maxAge

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseBool(v)
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
