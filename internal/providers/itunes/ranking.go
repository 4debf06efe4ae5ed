package itunes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/providers/common"
)

const (
	platformIPhone = 29
	platformIPad   = 30

	legacyIDsPath = "pageData.segmentedControl.segments.0.pageData.selectedChart.adamIds"

	defaultGenre    = 36
	defaultV2Limit  = 100
	defaultV2Region = "us"
)

// LegacySource reads the storefront "viewTop" page. Category is the numeric
// popId and Region the storefront id.
type LegacySource struct {
	client
}

func NewLegacySource(cfg Config) *LegacySource {
	return &LegacySource{client: newClient(cfg)}
}

func (s *LegacySource) Name() string { return "itunes-legacy-charts" }

func (s *LegacySource) Validate(query domain.RankingQuery) error {
	chartID, err := strconv.Atoi(strings.TrimSpace(query.Category))
	if err != nil {
		return domain.InvalidCategory(query.Category)
	}
	if _, ok := s.catalog.LegacyChart(chartID); !ok {
		return domain.InvalidCategory(query.Category)
	}
	if _, ok := s.catalog.Storefront(query.Region); !ok {
		return fmt.Errorf("%w: unknown storefront %q", domain.ErrInvalidRequest, query.Region)
	}
	return nil
}

func (s *LegacySource) FetchIdentifiers(ctx context.Context, query domain.RankingQuery) ([]int64, error) {
	if err := s.Validate(query); err != nil {
		return nil, err
	}
	chartID, _ := strconv.Atoi(strings.TrimSpace(query.Category))
	chart, _ := s.catalog.LegacyChart(chartID)
	storefront, _ := s.catalog.Storefront(query.Region)

	platform := platformIPhone
	if chart.IPad {
		platform = platformIPad
	}
	genre := query.Genre
	if genre <= 0 {
		genre = defaultGenre
	}

	params := url.Values{}
	params.Set("genreId", strconv.Itoa(genre))
	params.Set("popId", strconv.Itoa(chart.ChartID))
	header := http.Header{}
	header.Set("X-Apple-Store-Front", fmt.Sprintf("%d,%d", storefront, platform))

	payload, err := s.requester(s.Name()).GetJSON(ctx, s.baseURL+legacyChartPath+"?"+params.Encode(), header)
	if err != nil {
		return nil, err
	}
	ids := gjson.GetBytes(payload, legacyIDsPath)
	if !ids.IsArray() {
		return nil, common.MalformedPayload(s.Name(), "chart ids not found")
	}
	return common.IDs(ids), nil
}

// ChartsSource reads the MZStoreServices charts feed. Category is the chart
// name (e.g. "FreeApplications") and Region the ISO country.
type ChartsSource struct {
	client
}

func NewChartsSource(cfg Config) *ChartsSource {
	return &ChartsSource{client: newClient(cfg)}
}

func (s *ChartsSource) Name() string { return "itunes-charts" }

func (s *ChartsSource) Validate(query domain.RankingQuery) error {
	if !s.catalog.ValidChartType(strings.TrimSpace(query.Category)) {
		return domain.InvalidCategory(query.Category)
	}
	return nil
}

func (s *ChartsSource) FetchIdentifiers(ctx context.Context, query domain.RankingQuery) ([]int64, error) {
	if err := s.Validate(query); err != nil {
		return nil, err
	}
	genre := query.Genre
	if genre <= 0 {
		genre = defaultGenre
	}
	limit := query.Limit
	if limit <= 0 {
		limit = defaultV2Limit
	}
	region := strings.ToLower(strings.TrimSpace(query.Region))
	if region == "" {
		region = defaultV2Region
	}

	params := url.Values{}
	params.Set("cc", region)
	params.Set("g", strconv.Itoa(genre))
	params.Set("name", strings.TrimSpace(query.Category))
	params.Set("limit", strconv.Itoa(limit))

	payload, err := s.requester(s.Name()).GetJSON(ctx, s.baseURL+chartsV2Path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	// A feed without resultIds is an empty chart, not an error.
	return common.IDs(gjson.GetBytes(payload, "resultIds")), nil
}
