package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cragcast/internal/weather"
)

type Config struct {
	Port        string
	DatabaseURL string

	OWMBaseURL   string
	OWMAPIKey    string
	OWMRateLimit float64

	TimerDBPath string

	ForecastCacheTTL      time.Duration
	ForecastRetryAttempts uint
	ActivePollInterval    time.Duration
	WarmInterval          time.Duration

	CragsFile string
}

// Load reads configuration from the environment. A .env file in the
// working directory is imported first if present; real environment
// variables win over it.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}
	return Config{
		Port:                  getEnv("PORT", "8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		OWMBaseURL:            getEnv("OWM_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		OWMAPIKey:             getEnv("OWM_API_KEY", ""),
		OWMRateLimit:          getFloat("OWM_RATE_LIMIT", 1),
		TimerDBPath:           getEnv("TIMER_DB_PATH", "cragcast.db"),
		ForecastCacheTTL:      getDuration("FORECAST_CACHE_TTL", 30*time.Minute),
		ForecastRetryAttempts: uint(getInt("FORECAST_RETRY_ATTEMPTS", 3)),
		ActivePollInterval:    getDuration("ACTIVE_POLL_INTERVAL", 5*time.Second),
		WarmInterval:          getDuration("WARM_INTERVAL", 30*time.Minute),
		CragsFile:             getEnv("CRAGS_FILE", ""),
	}
}

// LoadCrags reads a YAML list of crags. An empty path yields no crags.
func LoadCrags(path string) ([]weather.Crag, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crags file: %w", err)
	}
	var crags []weather.Crag
	if err := yaml.Unmarshal(data, &crags); err != nil {
		return nil, fmt.Errorf("parse crags file: %w", err)
	}
	for i, c := range crags {
		if c.Name == "" || c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
			return nil, fmt.Errorf("crag %d: invalid name or coordinates", i)
		}
	}
	return crags, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		slog.Warn("ignoring invalid integer setting", "key", key, "value", v)
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring invalid number setting", "key", key, "value", v)
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", v)
		return fallback
	}
	return d
}
