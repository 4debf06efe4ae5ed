package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apihttp "appcharts/chartservice/internal/api/http"
	"appcharts/chartservice/internal/app"
	"appcharts/chartservice/internal/catalog"
	"appcharts/chartservice/internal/charts"
	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/metrics"
	"appcharts/chartservice/internal/providers/itunes"
	"appcharts/chartservice/internal/providers/sensortower"
	"appcharts/chartservice/internal/telemetry"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "chart-service")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		logger.Error("catalog load failed", slog.String("path", cfg.CatalogFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("service", "chart-service"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("upstreamTimeout", cfg.UpstreamTimeout),
		slog.String("itunesBaseURL", cfg.ITunesBaseURL),
		slog.String("sensorTowerBaseURL", cfg.SensorTowerBaseURL),
		slog.String("lookupCountry", cfg.LookupCountry),
		slog.Int("resolveCeiling", cfg.ResolveCeiling),
		slog.Int("resolveBatchSize", cfg.ResolveBatchSize),
		slog.Duration("resolveBatchDelay", cfg.ResolveBatchDelay),
		slog.Int("overlayFrom", cfg.OverlayRankFrom),
		slog.Int("overlayTo", cfg.OverlayRankTo),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.Bool("hasCatalogFile", cfg.CatalogFile != ""),
		slog.Int("chartTypes", len(cat.ChartTypes)),
	)

	itunesCfg := itunes.Config{
		BaseURL:   cfg.ITunesBaseURL,
		UserAgent: cfg.UserAgent,
		Client:    newUpstreamClient(cfg.UpstreamTimeout),
		Catalog:   cat,
	}
	overlayClient := sensortower.NewClient(sensortower.Config{
		BaseURL:   cfg.SensorTowerBaseURL,
		UserAgent: cfg.UserAgent,
		Client:    newUpstreamClient(cfg.UpstreamTimeout),
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := charts.NewSettingsService(charts.EngineSettings{
		OverlayEnabled: cfg.OverlayEnabled,
		OverlayWindow:  charts.RankWindow{From: cfg.OverlayRankFrom, To: cfg.OverlayRankTo},
	}, buildSettingsStore(rootCtx, cfg, logger))
	if restored, err := settings.Restore(rootCtx); err != nil {
		logger.Warn("engine settings restore failed", slog.String("error", err.Error()))
	} else if restored {
		current := settings.Current()
		logger.Info("engine settings restored",
			slog.Bool("overlayEnabled", current.OverlayEnabled),
			slog.Int("overlayFrom", current.OverlayWindow.From),
			slog.Int("overlayTo", current.OverlayWindow.To),
		)
	}

	chartService := charts.NewService(itunes.NewLookupClient(itunesCfg), cfg.UpstreamTimeout,
		charts.WithIdentifierSource(domain.ChartVariantLegacy, itunes.NewLegacySource(itunesCfg)),
		charts.WithIdentifierSource(domain.ChartVariantV2, itunes.NewChartsSource(itunesCfg)),
		charts.WithSearchSource(itunes.NewSearchClient(itunesCfg)),
		charts.WithOverlaySource(overlayClient, cfg.OverlayConcurrency),
		charts.WithResolverConfig(charts.ResolverConfig{
			Ceiling:    cfg.ResolveCeiling,
			BatchSize:  cfg.ResolveBatchSize,
			BatchDelay: cfg.ResolveBatchDelay,
		}),
		charts.WithSettings(settings),
		charts.WithLookupCountry(cfg.LookupCountry),
		charts.WithLogger(logger),
	)

	handler := apihttp.NewServer(chartService,
		apihttp.WithLogger(logger),
		apihttp.WithCatalog(cat),
		apihttp.WithEngineSettings(settings),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithCORSOrigins(cfg.CORSAllowedOrigins),
	).Handler()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// A full chart resolve is several sequential lookups plus the overlay
		// fan-out, so leave room beyond a single upstream timeout.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("chart service started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Duration("timeout", cfg.UpstreamTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("chart service stopped")
}

func newUpstreamClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildSettingsStore returns nil, meaning in-memory settings, when Redis is
// not configured or not reachable.
func buildSettingsStore(ctx context.Context, cfg app.Config, logger *slog.Logger) charts.SettingsStore {
	if cfg.RedisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("settings store disabled: invalid redis url", slog.String("error", err.Error()))
		return nil
	}
	store := charts.NewRedisSettingsStore(redis.NewClient(redisOpts), cfg.SettingsKey)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("settings store disabled: redis unavailable", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return store
}
