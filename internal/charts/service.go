package charts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"appcharts/chartservice/internal/domain"
)

var ErrUnsupportedVariant = errors.New("chart variant is not configured")

// IdentifierSource returns the ordered item ids of one ranking list.
type IdentifierSource interface {
	Name() string
	FetchIdentifiers(ctx context.Context, query domain.RankingQuery) ([]int64, error)
}

// QueryValidator is implemented by sources that can reject a query without
// touching the network.
type QueryValidator interface {
	Validate(query domain.RankingQuery) error
}

// LookupClient performs a single bulk lookup call. Results may be unordered
// and may omit any of the requested ids.
type LookupClient interface {
	Name() string
	Lookup(ctx context.Context, ids []int64, country string) ([]domain.ResolvedRecord, error)
}

type SearchSource interface {
	Name() string
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.ResolvedRecord, error)
}

type OverlaySource interface {
	Name() string
	FetchOverlay(ctx context.Context, id int64, country string) (domain.OverlayData, error)
}

type Service struct {
	sources        map[domain.ChartVariant]IdentifierSource
	lookup         LookupClient
	search         SearchSource
	overlay        OverlaySource
	resolverCfg    ResolverConfig
	resolver       *BatchResolver
	enricher       *OverlayEnricher
	overlayWorkers int
	settings       *SettingsService
	lookupCountry  string
	caller         *upstreamCaller
	health         *healthTracker
	logger         *slog.Logger
}

type ServiceOption func(*Service)

func WithIdentifierSource(variant domain.ChartVariant, source IdentifierSource) ServiceOption {
	return func(s *Service) {
		if source != nil {
			s.sources[variant] = source
		}
	}
}

func WithSearchSource(source SearchSource) ServiceOption {
	return func(s *Service) {
		s.search = source
	}
}

func WithOverlaySource(source OverlaySource, workers int) ServiceOption {
	return func(s *Service) {
		s.overlay = source
		s.overlayWorkers = workers
	}
}

func WithResolverConfig(cfg ResolverConfig) ServiceOption {
	return func(s *Service) {
		s.resolverCfg = cfg
	}
}

func WithSettings(settings *SettingsService) ServiceOption {
	return func(s *Service) {
		if settings != nil {
			s.settings = settings
		}
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.caller.retry = cfg
	}
}

// WithLookupCountry sets the storefront country used for bulk lookups when
// a request does not name one.
func WithLookupCountry(country string) ServiceOption {
	return func(s *Service) {
		if value := strings.TrimSpace(country); value != "" {
			s.lookupCountry = strings.ToUpper(value)
		}
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the chart pipeline around a bulk lookup client. timeout is
// applied to every individual upstream call.
func NewService(lookup LookupClient, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	health := newHealthTracker()
	svc := &Service{
		sources:       make(map[domain.ChartVariant]IdentifierSource),
		lookup:        lookup,
		lookupCountry: "US",
		settings:      NewSettingsService(DefaultEngineSettings(), nil),
		health:        health,
		caller: &upstreamCaller{
			timeout: timeout,
			retry:   DefaultRetryConfig(),
			health:  health,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}

	svc.resolver = NewBatchResolver(lookup, svc.resolverCfg)
	svc.resolver.caller = svc.caller
	svc.enricher = NewOverlayEnricher(svc.overlay, svc.overlayWorkers)
	svc.enricher.caller = svc.caller
	svc.enricher.logger = svc.logger

	if lookup != nil {
		health.register(lookup.Name(), "lookup")
	}
	for variant, source := range svc.sources {
		health.register(source.Name(), "ranking-"+string(variant))
	}
	if svc.search != nil {
		health.register(svc.search.Name(), "search")
	}
	if svc.overlay != nil {
		health.register(svc.overlay.Name(), "overlay")
	}
	return svc
}

func (s *Service) Settings() *SettingsService {
	return s.settings
}

func (s *Service) Ceiling() int {
	return s.resolver.Ceiling()
}

func (s *Service) ProviderDiagnostics() []domain.ProviderDiagnostics {
	return s.health.diagnostics()
}

type ChartRequest struct {
	Variant domain.ChartVariant
	Query   domain.RankingQuery
	Page    domain.PageRequest
	// Country is used for the bulk lookup and the overlay; empty means the
	// service default.
	Country string
}

// Chart runs the full ranking pipeline: ids, batched resolve of the capped
// prefix, rank reconciliation, pagination and overlay enrichment.
func (s *Service) Chart(ctx context.Context, request ChartRequest) (domain.ChartPage, error) {
	source, ok := s.sources[request.Variant]
	if !ok {
		return domain.ChartPage{}, fmt.Errorf("%w: %s", ErrUnsupportedVariant, request.Variant)
	}
	if err := validatePage(request.Page); err != nil {
		return domain.ChartPage{}, err
	}
	if validator, ok := source.(QueryValidator); ok {
		if err := validator.Validate(request.Query); err != nil {
			return domain.ChartPage{}, err
		}
	}
	country := s.countryOrDefault(request.Country)

	var ids []int64
	err := s.caller.do(ctx, source.Name(), func(callCtx context.Context) error {
		var fetchErr error
		ids, fetchErr = source.FetchIdentifiers(callCtx, request.Query)
		return fetchErr
	})
	if err != nil {
		return domain.ChartPage{}, err
	}

	ceiling := s.resolver.Ceiling()
	prefix := ids
	if len(prefix) > ceiling {
		prefix = prefix[:ceiling]
	}

	var records []domain.EnrichedRecord
	if len(prefix) > 0 {
		resolved, err := s.resolver.Resolve(ctx, prefix, len(prefix), country)
		if err != nil {
			return domain.ChartPage{}, err
		}
		records = Reconcile(prefix, resolved)
	}

	items, pagination := Paginate(records, request.Page, len(ids), ceiling)

	settings := s.settings.Current()
	if settings.OverlayEnabled {
		items = s.enricher.Enrich(ctx, items, settings.OverlayWindow, country)
	}

	return domain.ChartPage{Items: items, Pagination: pagination}, nil
}

type SearchRequest struct {
	Query domain.SearchQuery
	Page  domain.PageRequest
}

// Search is the single-call sibling pipeline: records arrive resolved and in
// provider order, so only pagination applies.
func (s *Service) Search(ctx context.Context, request SearchRequest) (domain.SearchPage, error) {
	if s.search == nil {
		return domain.SearchPage{}, errors.New("search source is not configured")
	}
	term := strings.TrimSpace(request.Query.Term)
	if term == "" {
		return domain.SearchPage{}, fmt.Errorf("%w: searchTerm is required", domain.ErrInvalidRequest)
	}
	if err := validatePage(request.Page); err != nil {
		return domain.SearchPage{}, err
	}
	query := request.Query
	query.Term = term
	query.Country = s.countryOrDefault(query.Country)

	var records []domain.ResolvedRecord
	err := s.caller.do(ctx, s.search.Name(), func(callCtx context.Context) error {
		var searchErr error
		records, searchErr = s.search.Search(callCtx, query)
		return searchErr
	})
	if err != nil {
		return domain.SearchPage{}, err
	}

	summaries := make([]domain.AppSummary, 0, len(records))
	for _, record := range records {
		summaries = append(summaries, record.SearchSummary())
	}
	items, pagination := Paginate(summaries, request.Page, len(summaries), s.resolver.Ceiling())
	return domain.SearchPage{Items: items, Pagination: pagination}, nil
}

// Details resolves a single app through the bulk resolver.
func (s *Service) Details(ctx context.Context, id int64, country string) (domain.AppDetails, error) {
	if id <= 0 {
		return domain.AppDetails{}, fmt.Errorf("%w: appId must be a positive integer", domain.ErrInvalidRequest)
	}
	resolved, err := s.resolver.Resolve(ctx, []int64{id}, 1, s.countryOrDefault(country))
	if err != nil {
		return domain.AppDetails{}, err
	}
	record, ok := resolved[id]
	if !ok {
		return domain.AppDetails{}, domain.ErrNotFound
	}
	return record.Details(), nil
}

// Overlay fetches overlay data for an explicit id list, with the same
// per-id failure isolation as chart enrichment.
func (s *Service) Overlay(ctx context.Context, ids []int64, country string) map[int64]domain.OverlayData {
	return s.enricher.FetchAll(ctx, ids, s.countryOrDefault(country))
}

func (s *Service) countryOrDefault(country string) string {
	if value := strings.TrimSpace(country); value != "" {
		return strings.ToUpper(value)
	}
	return s.lookupCountry
}

func validatePage(page domain.PageRequest) error {
	if page.Limit <= 0 {
		return fmt.Errorf("%w: limit must be > 0", domain.ErrInvalidRequest)
	}
	if page.Offset < 0 {
		return fmt.Errorf("%w: offset must be >= 0", domain.ErrInvalidRequest)
	}
	return nil
}
