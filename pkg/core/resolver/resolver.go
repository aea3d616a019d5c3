// Package resolver maps a fund ticker to its data-source mapping. Static
// mapping tables are checked first (they are curated and cheapest to verify);
// auto-discovery against the public entity directory is a last resort because
// a matched registrant may not actually file the target disclosure type.
package resolver

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	hjson "github.com/hjson/hjson-go/v4"
	yaml "gopkg.in/yaml.v2"

	"etf_holdings/pkg/models"
)

// DefaultScanDepth is the filing scan budget for mappings without a series
// constraint and without a per-mapping override.
const DefaultScanDepth = 5

// deepScanDepth applies to the curated tickers whose registrant files many
// sibling funds before the target one.
const deepScanDepth = 20

// DiscoveryFunc looks a ticker up in the public entity directory and returns
// a registrant identifier, best effort.
type DiscoveryFunc func(ctx context.Context, ticker string) (registrantID string, err error)

// MappingTables holds the three curated tables in the on-disk layout.
type MappingTables struct {
	Tabular     map[string]models.TabularMapping     `json:"tabular" yaml:"tabular"`
	Composition map[string]models.CompositionMapping `json:"composition" yaml:"composition"`
	Regulatory  map[string]models.RegulatoryMapping  `json:"regulatory" yaml:"regulatory"`
}

// Resolver resolves tickers against curated tables, with optional discovery.
type Resolver struct {
	tables   MappingTables
	discover DiscoveryFunc
	logger   *log.Logger
}

// New creates a resolver seeded with the built-in regulatory table. A nil
// discover func disables auto-discovery.
func New(discover DiscoveryFunc) *Resolver {
	return &Resolver{
		tables: MappingTables{
			Tabular:     map[string]models.TabularMapping{},
			Composition: map[string]models.CompositionMapping{},
			Regulatory:  builtinRegulatory(),
		},
		discover: discover,
	}
}

// SetLogger directs diagnostic output.
func (r *Resolver) SetLogger(l *log.Logger) { r.logger = l }

// builtinRegulatory is the curated registrant table. Vanguard funds share one
// registrant that files dozens of sibling series, hence the series pin and
// the deeper scan budget with name aliases for older filings.
func builtinRegulatory() map[string]models.RegulatoryMapping {
	return map[string]models.RegulatoryMapping{
		"RSP":  {RegistrantID: "0001064642"},
		"AIQ":  {RegistrantID: "0001432353"},
		"NLR":  {RegistrantID: "0001137360"},
		"FENY": {RegistrantID: "0001284940"},
		"VTI": {
			RegistrantID: "0000036405",
			SeriesID:     "S000002848",
			ScanDepth:    deepScanDepth,
			Aliases:      []string{"TOTAL STOCK MARKET", "VANGUARD TOTAL STOCK MARKET INDEX"},
		},
		"VONV": {
			RegistrantID: "0000036405",
			ScanDepth:    deepScanDepth,
			Aliases:      []string{"RUSSELL 1000 VALUE", "VANGUARD RUSSELL 1000 VALUE INDEX"},
		},
		"XSHQ": {RegistrantID: "0001378872"},
		"USCA": {RegistrantID: "0001540305"},
	}
}

// LoadMappings merges mapping tables from a YAML or HJSON file over the
// current tables. File entries win over built-ins for the same ticker.
func (r *Resolver) LoadMappings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read mapping file: %w", err)
	}

	var tables MappingTables
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hjson":
		if err := hjson.Unmarshal(data, &tables); err != nil {
			return fmt.Errorf("cannot parse HJSON mapping file %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &tables); err != nil {
			return fmt.Errorf("cannot parse YAML mapping file %s: %w", path, err)
		}
	}

	for ticker, m := range tables.Tabular {
		r.tables.Tabular[strings.ToUpper(ticker)] = m
	}
	for ticker, m := range tables.Composition {
		r.tables.Composition[strings.ToUpper(ticker)] = m
	}
	for ticker, m := range tables.Regulatory {
		r.tables.Regulatory[strings.ToUpper(ticker)] = m
	}
	return nil
}

// AddRegulatory registers a regulatory mapping programmatically (discovery
// tooling uses this for trial extractions).
func (r *Resolver) AddRegulatory(ticker string, m models.RegulatoryMapping) {
	r.tables.Regulatory[Normalize(ticker)] = m
}

// Normalize canonicalizes ticker input: trimmed, uppercase.
func Normalize(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Resolve maps a ticker to its data source. Precedence, first match wins:
// tabular table, composition table, regulatory table, auto-discovery (when
// enabled), unresolved. Lookups are case-insensitive.
func (r *Resolver) Resolve(ctx context.Context, ticker string) models.DataSourceMapping {
	symbol := Normalize(ticker)

	if m, ok := r.tables.Tabular[symbol]; ok {
		mapping := m
		return models.DataSourceMapping{Kind: models.SourceTabularFeed, Tabular: &mapping}
	}
	if m, ok := r.tables.Composition[symbol]; ok {
		mapping := m
		return models.DataSourceMapping{Kind: models.SourceCompositionAPI, Composition: &mapping}
	}
	if m, ok := r.tables.Regulatory[symbol]; ok {
		mapping := m
		return models.DataSourceMapping{Kind: models.SourceRegulatoryFiling, Regulatory: &mapping}
	}

	if r.discover == nil {
		return models.Unresolved(models.ReasonNoMapping)
	}

	registrantID, err := r.discover(ctx, symbol)
	if err != nil || registrantID == "" {
		if err != nil && r.logger != nil {
			r.logger.Printf("[WARNING] discovery failed for %s: %v", symbol, err)
		}
		return models.Unresolved(models.ReasonDiscoveryFailed)
	}

	return models.DataSourceMapping{
		Kind: models.SourceRegulatoryFiling,
		Regulatory: &models.RegulatoryMapping{
			RegistrantID: registrantID,
			Discovered:   true,
		},
	}
}
