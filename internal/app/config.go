package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	LogLevel           string
	LogFormat          string
	UpstreamTimeout    time.Duration
	UserAgent          string
	ITunesBaseURL      string
	SensorTowerBaseURL string
	LookupCountry      string
	CatalogFile        string
	RedisURL           string
	SettingsKey        string

	ResolveCeiling    int
	ResolveBatchSize  int
	ResolveBatchDelay time.Duration

	OverlayEnabled     bool
	OverlayRankFrom    int
	OverlayRankTo      int
	OverlayConcurrency int

	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8787"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UpstreamTimeout:    time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 10)) * time.Second,
		UserAgent:          getEnv("SEARCH_USER_AGENT", "app-charts/1.0"),
		ITunesBaseURL:      getEnv("ITUNES_BASE_URL", "https://itunes.apple.com"),
		SensorTowerBaseURL: getEnv("SENSORTOWER_BASE_URL", "https://app.sensortower.com"),
		LookupCountry:      strings.ToUpper(getEnv("LOOKUP_COUNTRY", "US")),
		CatalogFile:        getEnv("CATALOG_FILE", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		SettingsKey:        getEnv("SETTINGS_REDIS_KEY", ""),
		ResolveCeiling:     getEnvInt("RESOLVE_CEILING", 200),
		ResolveBatchSize:   getEnvInt("RESOLVE_BATCH_SIZE", 50),
		ResolveBatchDelay:  time.Duration(getEnvNonNegativeInt("RESOLVE_BATCH_DELAY_MS", 100)) * time.Millisecond,
		OverlayEnabled:     getEnvBool("OVERLAY_ENABLED", true),
		OverlayRankFrom:    getEnvInt("OVERLAY_RANK_FROM", 195),
		OverlayRankTo:      getEnvInt("OVERLAY_RANK_TO", 200),
		OverlayConcurrency: getEnvInt("OVERLAY_CONCURRENCY", 8),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getEnvNonNegativeInt is getEnvInt that also accepts 0.
func getEnvNonNegativeInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// getEnvFloat accepts 0 so the rate limiter can be switched off.
func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if value := strings.TrimSpace(part); value != "" {
			out = append(out, value)
		}
	}
	return out
}
