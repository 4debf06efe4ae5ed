package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"appcharts/chartservice/internal/catalog"
	"appcharts/chartservice/internal/charts"
	"appcharts/chartservice/internal/domain"
)

const (
	apiPrefix      = "/api"
	serviceVersion = "1.0.0"

	defaultLegacyLimit = 20
	defaultV2Limit     = 25
	defaultSearchLimit = 25
	defaultGenre       = 36
	defaultV2Country   = "us"
	defaultMaxFetch    = 100
	defaultStorefront  = "US"
	maxSearchTermLen   = 500
)

type ChartService interface {
	Chart(ctx context.Context, request charts.ChartRequest) (domain.ChartPage, error)
	Search(ctx context.Context, request charts.SearchRequest) (domain.SearchPage, error)
	Details(ctx context.Context, id int64, country string) (domain.AppDetails, error)
	Overlay(ctx context.Context, ids []int64, country string) map[int64]domain.OverlayData
	ProviderDiagnostics() []domain.ProviderDiagnostics
}

type EngineSettingsService interface {
	Current() charts.EngineSettings
	Update(ctx context.Context, patch charts.EngineSettingsPatch) (charts.EngineSettings, error)
}

type Server struct {
	charts      ChartService
	settings    EngineSettingsService
	catalog     *catalog.Catalog
	logger      *slog.Logger
	rateRPS     float64
	rateBurst   int
	corsOrigins []string
	now         func() time.Time
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithCatalog(cat *catalog.Catalog) ServerOption {
	return func(s *Server) {
		s.catalog = cat
	}
}

func WithEngineSettings(settings EngineSettingsService) ServerOption {
	return func(s *Server) {
		s.settings = settings
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		s.rateRPS = rps
		s.rateBurst = burst
	}
}

func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

func NewServer(chartService ChartService, options ...ServerOption) *Server {
	server := &Server{
		charts:    chartService,
		logger:    slog.Default(),
		rateRPS:   50,
		rateBurst: 100,
		now:       time.Now,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	if server.catalog == nil {
		server.catalog = catalog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"/health":           s.handleHealth,
		"/charts":           s.handleLegacyChart,
		"/top-charts":       s.handleLegacyChart,
		"/charts-v2":        s.handleChartsV2,
		"/chart-types":      s.handleChartTypes,
		"/search":           s.handleSearch,
		"/app-details":      s.handleAppDetails,
		"/overlay-data":     s.handleOverlayData,
		"/sensortower-data": s.handleOverlayData,
		"/providers/health": s.handleProvidersHealth,
		"/settings/engine":  s.handleEngineSettings,
	}
	for path, handler := range routes {
		mux.HandleFunc(path, handler)
		mux.HandleFunc(apiPrefix+path, handler)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Endpoint not found")
	})

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "chart-service",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !isInfraPath(r.URL.Path)
		}),
	)
	limited := rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced))
	return recoveryMiddleware(s.logger, requestIDMiddleware(corsMiddleware(s.corsOrigins, limited)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "App charts API is running",
		"timestamp": s.now().UTC().Format(time.RFC3339Nano),
		"version":   serviceVersion,
	})
}

func (s *Server) handleLegacyChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body legacyChartRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	limit, offset, err := body.resolve(defaultLegacyLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	storefront := body.Country.String()
	if storefront == "" {
		storefront = defaultStorefront
	}
	storefrontID, ok := s.catalog.Storefront(storefront)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "unknown country "+strconv.Quote(storefront))
		return
	}
	genre, err := s.legacyGenre(firstSet(body.Category, body.Genre))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	chartID := s.legacyChartID(firstSet(body.RankingType, body.Chart))
	country := s.catalog.CountryForStorefront(storefrontID)
	if country == "" {
		country = defaultStorefront
	}

	page, err := s.charts.Chart(r.Context(), charts.ChartRequest{
		Variant: domain.ChartVariantLegacy,
		Query: domain.RankingQuery{
			Category: chartID,
			Genre:    genre,
			Region:   strconv.Itoa(storefrontID),
		},
		Page:    domain.PageRequest{Offset: offset, Limit: limit},
		Country: country,
	})
	if err != nil {
		s.respondError(w, r, "legacy chart request failed", err,
			slog.String("country", storefront),
			slog.String("rankingType", chartID),
			slog.Int("genre", genre),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"apps":       nonNil(page.Items),
		"total":      page.Pagination.TotalAvailable,
		"pagination": page.Pagination,
		"nextCursor": nextCursor(limit, page.Pagination),
	})
}

func (s *Server) handleChartsV2(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body chartsV2Request
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	chartType := strings.TrimSpace(body.ChartType)
	if chartType == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "chartType is required")
		return
	}
	limit, offset, err := body.resolve(defaultV2Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	genre := defaultGenre
	if body.Genre.set {
		value, err := body.Genre.Int()
		if err != nil || value <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "genre must be a positive integer")
			return
		}
		genre = int(value)
	}
	country := strings.TrimSpace(body.Country)
	if country == "" {
		country = defaultV2Country
	}
	maxFetch := defaultMaxFetch
	if body.MaxFetch != nil {
		if *body.MaxFetch <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "maxFetch must be > 0")
			return
		}
		maxFetch = *body.MaxFetch
	}

	page, err := s.charts.Chart(r.Context(), charts.ChartRequest{
		Variant: domain.ChartVariantV2,
		Query: domain.RankingQuery{
			Category: chartType,
			Genre:    genre,
			Region:   country,
			Limit:    maxFetch,
		},
		Page:    domain.PageRequest{Offset: offset, Limit: limit},
		Country: country,
	})
	if err != nil {
		s.respondError(w, r, "chart request failed", err,
			slog.String("chartType", chartType),
			slog.String("country", country),
			slog.Int("genre", genre),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"apps":    nonNil(page.Items),
		"chartInfo": map[string]any{
			"chartType": chartType,
			"genre":     genre,
			"country":   country,
		},
		"pagination": page.Pagination,
		"nextCursor": nextCursor(limit, page.Pagination),
	})
}

func (s *Server) handleChartTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	chartTypes := make([]map[string]string, 0, len(s.catalog.ChartTypes))
	for _, chart := range s.catalog.ChartTypes {
		chartTypes = append(chartTypes, map[string]string{
			"id":          chart.ID,
			"name":        chart.Name,
			"displayName": chart.DisplayName(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"chartTypes": chartTypes,
		"legacy": map[string]any{
			"description": "Legacy chart ids for the /charts endpoint",
			"charts":      s.catalog.LegacyCharts,
		},
		"genres":      s.catalog.Genres,
		"storefronts": s.catalog.Storefronts,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body searchRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	term := strings.TrimSpace(body.SearchTerm)
	if term == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "searchTerm is required")
		return
	}
	if len(term) > maxSearchTermLen {
		writeError(w, http.StatusBadRequest, "invalid_request", "searchTerm too long (max 500 characters)")
		return
	}
	limit, offset, err := body.resolve(defaultSearchLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	page, err := s.charts.Search(r.Context(), charts.SearchRequest{
		Query: domain.SearchQuery{Term: term, Country: body.Country, Language: body.Language},
		Page:  domain.PageRequest{Offset: offset, Limit: limit},
	})
	if err != nil {
		s.respondError(w, r, "search request failed", err,
			slog.String("term", shorten(term, 80)),
			slog.String("country", body.Country),
		)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"apps":       nonNil(page.Items),
		"pagination": page.Pagination,
		"nextCursor": nextCursor(limit, page.Pagination),
	})
}

func (s *Server) handleAppDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body appDetailsRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	id, err := body.AppID.Int()
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "appId must be a positive integer")
		return
	}

	app, err := s.charts.Details(r.Context(), id, body.Country)
	if err != nil {
		s.respondError(w, r, "app details request failed", err, slog.Int64("appId", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"app":     app,
	})
}

type overlayEntry struct {
	AppID int64 `json:"appId"`
	domain.OverlayData
}

func (s *Server) handleOverlayData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}
	var body overlayRequest
	if err := decodeJSONBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ids, err := body.ids()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	results := s.charts.Overlay(r.Context(), ids, body.Country)
	data := make(map[string]overlayEntry, len(results))
	failed := 0
	for id, overlay := range results {
		if overlay.Error != "" {
			failed++
		}
		data[strconv.FormatInt(id, 10)] = overlayEntry{AppID: id, OverlayData: overlay}
	}
	if failed > 0 {
		s.logger.Warn("overlay fetch partially failed",
			slog.String("requestId", requestIDFrom(r.Context())),
			slog.Int("requested", len(ids)),
			slog.Int("failed", failed),
		)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"total":   len(ids),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"checkedAt": s.now().UTC(),
		"items":     s.charts.ProviderDiagnostics(),
	})
}

func (s *Server) handleEngineSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "engine settings are not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"settings": s.settings.Current(),
		})
	case http.MethodPatch:
		var patch charts.EngineSettingsPatch
		if err := decodeJSONBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		updated, err := s.settings.Update(r.Context(), patch)
		if err != nil {
			s.respondError(w, r, "engine settings update failed", err)
			return
		}
		s.logger.Info("engine settings updated",
			slog.Bool("overlayEnabled", updated.OverlayEnabled),
			slog.Int("overlayFrom", updated.OverlayWindow.From),
			slog.Int("overlayTo", updated.OverlayWindow.To),
		)
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"settings": updated,
		})
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch)
	}
}

// respondError logs err with request context and maps it onto a status.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, message string, err error, attrs ...slog.Attr) {
	status, code, text := classifyError(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs = append([]slog.Attr{
		slog.String("requestId", requestIDFrom(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}, attrs...)
	s.logger.LogAttrs(r.Context(), level, message, attrs...)
	writeError(w, status, code, text)
}

func classifyError(err error) (int, string, string) {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidCategory), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "App not found"
	case errors.Is(err, charts.ErrUnsupportedVariant):
		return http.StatusServiceUnavailable, "service_unavailable", err.Error()
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, "upstream_error", upstream.Error()
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

func (s *Server) legacyGenre(value flexValue) (int, error) {
	if !value.set {
		return defaultGenre, nil
	}
	if id, err := value.Int(); err == nil {
		if id <= 0 {
			return 0, errors.New("category must be a positive genre id")
		}
		return int(id), nil
	}
	for name, id := range s.catalog.Genres {
		if strings.EqualFold(name, value.String()) {
			return id, nil
		}
	}
	return 0, errors.New("unknown category " + strconv.Quote(value.String()))
}

// legacyChartID maps a chart key such as "topFreeIphone" onto its popId.
// Anything else is passed through for the source to validate.
func (s *Server) legacyChartID(value flexValue) string {
	for _, chart := range s.catalog.LegacyCharts {
		if strings.EqualFold(chart.ID, value.String()) {
			return strconv.Itoa(chart.ChartID)
		}
	}
	return value.String()
}

func firstSet(values ...flexValue) flexValue {
	for _, value := range values {
		if value.set {
			return value
		}
	}
	return flexValue{}
}

func nextCursor(limit int, pagination domain.Pagination) *domain.PageCursor {
	cursor := domain.PageCursor{Offset: pagination.Offset, Limit: limit}
	next, ok := cursor.Next(pagination)
	if !ok {
		return nil
	}
	return &next
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
