package models

// SourceKind discriminates the data-source mapping variants. Exactly one
// variant applies per ticker.
type SourceKind int

const (
	SourceUnresolved SourceKind = iota
	SourceTabularFeed
	SourceCompositionAPI
	SourceRegulatoryFiling
)

func (k SourceKind) String() string {
	switch k {
	case SourceTabularFeed:
		return "tabular-feed"
	case SourceCompositionAPI:
		return "composition-api"
	case SourceRegulatoryFiling:
		return "regulatory-filing"
	default:
		return "unresolved"
	}
}

// UnresolvedReason explains why no data source could be assigned.
type UnresolvedReason int

const (
	// ReasonNoMapping means the ticker is in no mapping table and discovery
	// was not attempted because it is disabled.
	ReasonNoMapping UnresolvedReason = iota
	// ReasonDiscoveryFailed means discovery ran but produced no registrant.
	ReasonDiscoveryFailed
)

// RegulatoryMapping points a ticker at a filing registrant. SeriesID and
// ClassID narrow the fund within a multi-series trust; either may be empty.
type RegulatoryMapping struct {
	RegistrantID string   `json:"registrant_id" yaml:"registrant_id"`
	SeriesID     string   `json:"series_id,omitempty" yaml:"series_id"`
	ClassID      string   `json:"class_id,omitempty" yaml:"class_id"`
	// ScanDepth overrides the filing scan budget used when no series
	// constraint exists. Zero means the engine default.
	ScanDepth int `json:"scan_depth,omitempty" yaml:"scan_depth"`
	// Aliases are fund-name keywords matched in document previews for
	// filers that never echo the ticker symbol verbatim.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases"`
	// Discovered marks mappings synthesized by auto-discovery rather than
	// curated tables.
	Discovered bool `json:"discovered,omitempty" yaml:"-"`
}

// TabularMapping points a ticker at a delimited holdings download.
type TabularMapping struct {
	ProductID string `json:"product_id" yaml:"product_id"`
}

// CompositionMapping points a ticker at a composition-API product.
type CompositionMapping struct {
	ProductID string            `json:"product_id" yaml:"product_id"`
	BaseURL   string            `json:"base_url,omitempty" yaml:"base_url"`
	Context   map[string]string `json:"context,omitempty" yaml:"context"`
}

// DataSourceMapping is the tagged variant the resolver returns. Kind selects
// which pointer is populated; the orchestrator switches on it exhaustively.
type DataSourceMapping struct {
	Kind        SourceKind
	Regulatory  *RegulatoryMapping
	Tabular     *TabularMapping
	Composition *CompositionMapping
	Reason      UnresolvedReason
}

// Unresolved builds the unresolved variant with a reason.
func Unresolved(reason UnresolvedReason) DataSourceMapping {
	return DataSourceMapping{Kind: SourceUnresolved, Reason: reason}
}
