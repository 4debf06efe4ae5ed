// Package itunes talks to the public store endpoints: the two ranking feeds,
// the bulk lookup API and the search API.
package itunes

import (
	"net/http"
	"strings"

	"appcharts/chartservice/internal/catalog"
	"appcharts/chartservice/internal/providers/common"
)

const (
	defaultBaseURL   = "https://itunes.apple.com"
	defaultUserAgent = "app-charts/1.0"

	legacyChartPath = "/WebObjects/MZStore.woa/wa/viewTop"
	chartsV2Path    = "/WebObjects/MZStoreServices.woa/ws/charts"
	lookupPath      = "/lookup"
	searchPath      = "/search"
)

type Config struct {
	BaseURL   string
	UserAgent string
	Client    *http.Client
	// Catalog validates chart categories; nil means catalog.Default().
	Catalog *catalog.Catalog
}

type client struct {
	baseURL string
	catalog *catalog.Catalog
	http    *http.Client
	agent   string
}

func newClient(cfg Config) client {
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
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	return client{baseURL: baseURL, catalog: cat, http: httpClient, agent: userAgent}
}

func (c client) requester(provider string) common.Requester {
	return common.Requester{Provider: provider, Client: c.http, UserAgent: c.agent}
}
