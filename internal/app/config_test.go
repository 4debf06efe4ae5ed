package app

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "UPSTREAM_TIMEOUT_SECONDS", "SEARCH_USER_AGENT",
	"ITUNES_BASE_URL", "SENSORTOWER_BASE_URL", "LOOKUP_COUNTRY", "CATALOG_FILE",
	"REDIS_URL", "SETTINGS_REDIS_KEY",
	"RESOLVE_CEILING", "RESOLVE_BATCH_SIZE", "RESOLVE_BATCH_DELAY_MS",
	"OVERLAY_ENABLED", "OVERLAY_RANK_FROM", "OVERLAY_RANK_TO", "OVERLAY_CONCURRENCY",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg := LoadConfig()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"HTTPAddr", cfg.HTTPAddr, ":8787"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "text"},
		{"UpstreamTimeout", cfg.UpstreamTimeout, 10 * time.Second},
		{"ITunesBaseURL", cfg.ITunesBaseURL, "https://itunes.apple.com"},
		{"LookupCountry", cfg.LookupCountry, "US"},
		{"RedisURL", cfg.RedisURL, ""},
		{"ResolveCeiling", cfg.ResolveCeiling, 200},
		{"ResolveBatchSize", cfg.ResolveBatchSize, 50},
		{"ResolveBatchDelay", cfg.ResolveBatchDelay, 100 * time.Millisecond},
		{"OverlayEnabled", cfg.OverlayEnabled, true},
		{"OverlayRankFrom", cfg.OverlayRankFrom, 195},
		{"OverlayRankTo", cfg.OverlayRankTo, 200},
		{"OverlayConcurrency", cfg.OverlayConcurrency, 8},
		{"RateLimitRPS", cfg.RateLimitRPS, 50.0},
		{"RateLimitBurst", cfg.RateLimitBurst, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", tt.got, tt.got, tt.want, tt.want)
			}
		})
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins: got %v, want empty", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	for k, v := range map[string]string{
		"HTTP_ADDR":              ":9000",
		"LOG_LEVEL":              "DEBUG",
		"LOOKUP_COUNTRY":         "de",
		"RESOLVE_CEILING":        "100",
		"RESOLVE_BATCH_DELAY_MS": "0",
		"OVERLAY_ENABLED":        "off",
		"OVERLAY_RANK_FROM":      "1",
		"OVERLAY_RANK_TO":        "10",
		"RATE_LIMIT_RPS":         "0",
		"CORS_ALLOWED_ORIGINS":   "http://localhost:3000, ,https://charts.example",
	} {
		t.Setenv(k, v)
	}
	cfg := LoadConfig()

	if cfg.HTTPAddr != ":9000" || cfg.LogLevel != "debug" || cfg.LookupCountry != "DE" {
		t.Fatalf("unexpected basics: %+v", cfg)
	}
	if cfg.ResolveCeiling != 100 || cfg.ResolveBatchDelay != 0 {
		t.Fatalf("unexpected resolver config: %+v", cfg)
	}
	if cfg.OverlayEnabled || cfg.OverlayRankFrom != 1 || cfg.OverlayRankTo != 10 {
		t.Fatalf("unexpected overlay config: %+v", cfg)
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected limiter disabled, got %v", cfg.RateLimitRPS)
	}
	want := []string{"http://localhost:3000", "https://charts.example"}
	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("CORSAllowedOrigins[%d] = %q, want %q", i, cfg.CORSAllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfigInvalidValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESOLVE_CEILING", "-5")
	t.Setenv("UPSTREAM_TIMEOUT_SECONDS", "soon")
	t.Setenv("OVERLAY_ENABLED", "maybe")

	cfg := LoadConfig()
	if cfg.ResolveCeiling != 200 || cfg.UpstreamTimeout != 10*time.Second || !cfg.OverlayEnabled {
		t.Fatalf("invalid values should fall back to defaults: %+v", cfg)
	}
}
