package sensortower

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"appcharts/chartservice/internal/domain"
)

func TestFetchOverlay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ios/apps/42" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("country"); got != "JP" {
			t.Errorf("unexpected country %q", got)
		}
		_, _ = w.Write([]byte(`{"worldwide_last_month_downloads":{"value":50000},"worldwide_last_month_revenue":{"value":1234.5,"currency":"JPY"}}`))
	}))
	defer server.Close()

	data, err := NewClient(Config{BaseURL: server.URL}).FetchOverlay(context.Background(), 42, "jp")
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	if data.Downloads == nil || *data.Downloads != 50000 {
		t.Fatalf("unexpected downloads: %v", data.Downloads)
	}
	if data.Revenue == nil || *data.Revenue != 1234.5 || data.RevenueUnit != "JPY" {
		t.Fatalf("unexpected revenue: %+v", data)
	}
}

func TestParseOverlayDefaults(t *testing.T) {
	data := parseOverlay([]byte(`{"worldwide_last_month_downloads":{"value":0}}`))
	if data.Downloads != nil || data.Revenue != nil {
		t.Fatalf("expected unknown figures, got %+v", data)
	}
	if data.RevenueUnit != "USD" {
		t.Fatalf("expected USD default, got %q", data.RevenueUnit)
	}
}

func TestFetchOverlayStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewClient(Config{BaseURL: server.URL}).FetchOverlay(context.Background(), 1, "")
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != http.StatusForbidden || upstream.Provider != "sensortower" {
		t.Fatalf("expected 403 upstream error, got %v", err)
	}
}
