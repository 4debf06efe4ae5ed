package domain

type ChartVariant string

const (
	ChartVariantLegacy ChartVariant = "legacy"
	ChartVariantV2     ChartVariant = "v2"
)

// RankingQuery selects one ranking list. Category is the chart name for v2
// sources and the numeric chart id for the legacy source; Region is an ISO
// country for v2 and a storefront id for legacy.
type RankingQuery struct {
	Category string
	Genre    int
	Region   string
	Limit    int
}

type SearchQuery struct {
	Term     string
	Country  string
	Language string
}
