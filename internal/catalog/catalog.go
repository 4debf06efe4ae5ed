// Package catalog holds the enumerations the store ranking endpoints accept:
// v2 chart names, legacy chart ids, genres and storefronts.
package catalog

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// ChartType is a v2 chart name, keyed by a stable client-facing id.
type ChartType struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

func (c ChartType) DisplayName() string {
	return splitCamel(c.Name)
}

// LegacyChart is a popId understood by the legacy ranking endpoint.
type LegacyChart struct {
	ID      string `yaml:"id" json:"id"`
	ChartID int    `yaml:"chartId" json:"chartId"`
	IPad    bool   `yaml:"ipad" json:"-"`
}

type Catalog struct {
	ChartTypes   []ChartType    `yaml:"chartTypes"`
	LegacyCharts []LegacyChart  `yaml:"legacyCharts"`
	Genres       map[string]int `yaml:"genres"`
	Storefronts  map[string]int `yaml:"storefronts"`
}

func Default() *Catalog {
	return &Catalog{
		ChartTypes: []ChartType{
			{ID: "appsByRevenue", Name: "AppsByRevenue"},
			{ID: "freeApplications", Name: "FreeApplications"},
			{ID: "freeAppleTVApps", Name: "FreeAppleTVApps"},
			{ID: "paidAppleTVApps", Name: "PaidAppleTVApps"},
			{ID: "freeAppsV2", Name: "FreeAppsV2"},
			{ID: "paidIpadApplications", Name: "PaidIpadApplications"},
			{ID: "ipadAppsByRevenue", Name: "IpadAppsByRevenue"},
			{ID: "freeIpadApplications", Name: "FreeIpadApplications"},
			{ID: "paidApplications", Name: "PaidApplications"},
			{ID: "appleTVAppsByRevenue", Name: "AppleTVAppsByRevenue"},
			{ID: "applications", Name: "Applications"},
			{ID: "freeMacAppsV2", Name: "FreeMacAppsV2"},
		},
		LegacyCharts: []LegacyChart{
			{ID: "topFreeIphone", ChartID: 27},
			{ID: "topPaidIphone", ChartID: 30},
			{ID: "topGrossingIphone", ChartID: 38},
			{ID: "topFreeIpad", ChartID: 44, IPad: true},
			{ID: "topPaidIpad", ChartID: 45, IPad: true},
			{ID: "topGrossingIpad", ChartID: 46, IPad: true},
		},
		Genres: map[string]int{
			"all":              36,
			"Games":            6014,
			"Education":        6017,
			"Utilities":        6002,
			"Health & Fitness": 6013,
			"Photo & Video":    6008,
			"Entertainment":    6016,
			"Finance":          6015,
			"Productivity":     6007,
		},
		Storefronts: map[string]int{
			"US": 143441,
			"DE": 143443,
			"GB": 143444,
			"VN": 143471,
			"JP": 143462,
			"KR": 143466,
			"CN": 143465,
		},
	}
}

// Load returns the default catalog, overlaid with the YAML file at path when
// path is non-empty. Sections present in the file replace the defaults.
func Load(path string) (*Catalog, error) {
	base := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw, base)
}

func Parse(raw []byte, base *Catalog) (*Catalog, error) {
	if base == nil {
		base = Default()
	}
	var override Catalog
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	out := *base
	if len(override.ChartTypes) > 0 {
		out.ChartTypes = override.ChartTypes
	}
	if len(override.LegacyCharts) > 0 {
		out.LegacyCharts = override.LegacyCharts
	}
	if len(override.Genres) > 0 {
		out.Genres = override.Genres
	}
	if len(override.Storefronts) > 0 {
		out.Storefronts = override.Storefronts
	}
	for _, chart := range out.ChartTypes {
		if strings.TrimSpace(chart.Name) == "" {
			return nil, fmt.Errorf("parse catalog: chart type %q has no name", chart.ID)
		}
	}
	return &out, nil
}

func (c *Catalog) ValidChartType(name string) bool {
	for _, chart := range c.ChartTypes {
		if chart.Name == name {
			return true
		}
	}
	return false
}

func (c *Catalog) LegacyChart(chartID int) (LegacyChart, bool) {
	for _, chart := range c.LegacyCharts {
		if chart.ChartID == chartID {
			return chart, true
		}
	}
	return LegacyChart{}, false
}

// Storefront resolves a storefront id from either an ISO country code or a
// numeric storefront string.
func (c *Catalog) Storefront(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if id, err := strconv.Atoi(value); err == nil {
		return id, id > 0
	}
	id, ok := c.Storefronts[strings.ToUpper(value)]
	return id, ok
}

// CountryForStorefront is the reverse of Storefront; unknown ids map to "".
func (c *Catalog) CountryForStorefront(id int) string {
	for code, storefront := range c.Storefronts {
		if storefront == id {
			return code
		}
	}
	return ""
}

func splitCamel(value string) string {
	var b strings.Builder
	for i, r := range value {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
