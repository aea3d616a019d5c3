// Package models defines the shared record types of the holdings extraction
// engine: the canonical Holding row, per-ticker extraction results, batch
// aggregates, and the data-source mapping variants the resolver produces.
package models

import "strings"

// SuccessNotePrefix marks a successful extraction note. ExtractionResult.Rows
// is non-empty exactly when the note carries this prefix.
const SuccessNotePrefix = "OK via"

// Holding is one normalized position row, regardless of which provider format
// it was extracted from. All values are kept as strings; absent fields stay
// empty rather than carrying sentinel values.
type Holding struct {
	FundTicker    string `json:"fund_ticker"`
	Issuer        string `json:"issuer"`
	Title         string `json:"title,omitempty"`
	Cusip         string `json:"cusip,omitempty"`
	Isin          string `json:"isin,omitempty"`
	Balance       string `json:"balance,omitempty"`
	ValueUSD      string `json:"value_usd,omitempty"`
	WeightPct     string `json:"weight_pct,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Sector        string `json:"sector,omitempty"`
	Country       string `json:"country,omitempty"`
	CountryOfRisk string `json:"country_of_risk,omitempty"`
	SecurityType  string `json:"security_type,omitempty"`
	BloombergID   string `json:"bloomberg_id,omitempty"`
	AsOfDate      string `json:"as_of_date,omitempty"`
}

// HasIdentity reports whether the row carries enough identity to be worth
// keeping (at least one of issuer, title, or an identifier).
func (h Holding) HasIdentity() bool {
	return h.Issuer != "" || h.Title != "" || h.Cusip != "" || h.Isin != ""
}

// ExtractionResult is the outcome of one ticker lookup. Rows and Note are kept
// consistent: rows are present exactly when Note starts with SuccessNotePrefix.
type ExtractionResult struct {
	Ticker string    `json:"ticker"`
	Rows   []Holding `json:"rows"`
	Note   string    `json:"note"`
}

// OK reports whether the result represents a successful extraction.
func (r ExtractionResult) OK() bool {
	return strings.HasPrefix(r.Note, SuccessNotePrefix)
}

// BatchSummary aggregates counters over one ExtractMany call.
type BatchSummary struct {
	Processed      int `json:"processed"`
	WithHoldings   int `json:"with_holdings"`
	TotalPositions int `json:"total_positions"`
}

// BatchResult is the outcome of a multi-ticker extraction. PerTicker always
// has one entry per requested ticker, failed or not.
type BatchResult struct {
	PerTicker        map[string]ExtractionResult `json:"individual_results"`
	ConsolidatedRows []Holding                   `json:"consolidated_holdings"`
	Summary          BatchSummary                `json:"summary"`
}

// FilingSummary is one entry of a registrant's filing history, newest first.
type FilingSummary struct {
	FormType        string `json:"form"`
	AccessionID     string `json:"accession"`
	FilingDate      string `json:"filing_date"`
	PrimaryDocument string `json:"primary_document"`
}

// DocumentManifestEntry is one filename in a filing's directory listing.
type DocumentManifestEntry struct {
	Name string `json:"name"`
}
