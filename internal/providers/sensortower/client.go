// Package sensortower fetches per-app download and revenue estimates used as
// the chart overlay.
package sensortower

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"appcharts/chartservice/internal/domain"
	"appcharts/chartservice/internal/providers/common"
)

const (
	defaultBaseURL   = "https://app.sensortower.com"
	defaultUserAgent = "app-charts/1.0"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
}

type Client struct {
	requester common.Requester
	baseURL   string
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{baseURL: baseURL}
	c.requester = common.Requester{Provider: c.Name(), Client: httpClient, UserAgent: userAgent}
	return c
}

func (c *Client) Name() string { return "sensortower" }

func (c *Client) FetchOverlay(ctx context.Context, id int64, country string) (domain.OverlayData, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = "US"
	}
	endpoint := c.baseURL + "/api/ios/apps/" + strconv.FormatInt(id, 10) + "?" + url.Values{"country": {country}}.Encode()

	payload, err := c.requester.GetJSON(ctx, endpoint, nil)
	if err != nil {
		return domain.OverlayData{}, err
	}
	return parseOverlay(payload), nil
}

// parseOverlay treats a missing or zero figure as unknown.
func parseOverlay(payload []byte) domain.OverlayData {
	doc := gjson.ParseBytes(payload)
	out := domain.OverlayData{
		Downloads:   nonZero(doc.Get("worldwide_last_month_downloads.value")),
		Revenue:     nonZero(doc.Get("worldwide_last_month_revenue.value")),
		RevenueUnit: doc.Get("worldwide_last_month_revenue.currency").String(),
	}
	if out.RevenueUnit == "" {
		out.RevenueUnit = domain.DefaultRevenueUnit
	}
	return out
}

func nonZero(value gjson.Result) *float64 {
	v := common.OptionalFloat(value)
	if v == nil || *v == 0 {
		return nil
	}
	return v
}
