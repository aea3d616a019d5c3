// Package disambig decides, cheaply, whether a candidate filing belongs to a
// given fund. Neither the filing index nor the document body carries a
// queryable ticker field for every filer, so both stages are heuristic:
// manifest-level document selection, then a bounded content pre-filter that
// runs before any full parse.
package disambig

import (
	"bytes"
	"strings"

	"etf_holdings/pkg/models"
)

// PreviewWindow bounds how many leading bytes of a document the content
// pre-filter inspects.
const PreviewWindow = 100_000

// PickDocument selects the filing document worth fetching from a manifest.
// Preference order: the canonical primary document name, then the first XML
// file carrying the filing-type marker, then the first XML file at all.
func PickDocument(entries []models.DocumentManifestEntry) (string, bool) {
	for _, e := range entries {
		if strings.EqualFold(e.Name, "primary_doc.xml") {
			return e.Name, true
		}
	}
	for _, e := range entries {
		lower := strings.ToLower(e.Name)
		if strings.HasSuffix(lower, ".xml") && strings.Contains(lower, "nport") {
			return e.Name, true
		}
	}
	for _, e := range entries {
		if strings.HasSuffix(strings.ToLower(e.Name), ".xml") {
			return e.Name, true
		}
	}
	return "", false
}

// MatchResult classifies a content pre-filter outcome.
type MatchResult int

const (
	// MatchNone means no signal was found; the document should be skipped
	// without parsing.
	MatchNone MatchResult = iota
	// MatchTicker means a ticker-symbol or alias pattern matched.
	MatchTicker
	// MatchSeries means the series identifier matched exactly. This is
	// authoritative for multi-series registrants.
	MatchSeries
)

// MatchesFund scans a fixed-size prefix of the raw document for signals that
// it covers the given fund. Signals in priority order: exact series-id match
// (authoritative), literal ticker patterns, then per-mapping alias keywords.
func MatchesFund(content []byte, ticker string, mapping *models.RegulatoryMapping) MatchResult {
	window := content
	if len(window) > PreviewWindow {
		window = window[:PreviewWindow]
	}
	text := strings.ToLower(string(bytes.ToValidUTF8(window, nil)))

	if mapping != nil && mapping.SeriesID != "" {
		series := strings.ToLower(mapping.SeriesID)
		seriesPatterns := []string{
			"<seriesid>" + series + "</seriesid>",
			`seriesid="` + series + `"`,
			">" + series + "<",
		}
		for _, p := range seriesPatterns {
			if strings.Contains(text, p) {
				return MatchSeries
			}
		}
	}

	symbol := strings.ToLower(ticker)
	tickerPatterns := []string{
		"<ticker>" + symbol + "</ticker>",
		`ticker="` + symbol + `"`,
		">" + symbol + "<",
		" " + symbol + " ",
	}
	for _, p := range tickerPatterns {
		if strings.Contains(text, p) {
			return MatchTicker
		}
	}

	if mapping != nil {
		for _, alias := range mapping.Aliases {
			if alias == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(alias)) {
				return MatchTicker
			}
		}
	}

	return MatchNone
}
