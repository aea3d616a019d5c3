// Package extract composes the resolver, catalog client, feed clients,
// disambiguator, parsers, and cache into the end-to-end lookup chain. All
// failures are converted into the diagnostic note of a per-ticker result;
// nothing propagates past the public contract boundary.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"etf_holdings/pkg/core/catalog"
	"etf_holdings/pkg/core/disambig"
	"etf_holdings/pkg/core/feeds"
	"etf_holdings/pkg/core/parsers"
	"etf_holdings/pkg/core/resolver"
	"etf_holdings/pkg/core/store"
	"etf_holdings/pkg/models"
)

// DefaultMaxFilings bounds the filing scan when the caller does not.
const DefaultMaxFilings = 50

// seriesMissWindow bounds consecutive signal-free previews under a series
// constraint before the scan gives up early. A run of filings with neither the
// series id nor any ticker or alias signal means the fund is not in this
// catalog stretch.
const seriesMissWindow = 8

// nportFormPrefixes select the disclosure forms that carry holdings.
var nportFormPrefixes = []string{"NPORT-P", "NPORT-EX"}

// Failure classes. Each is folded into the result note for its ticker; none
// escapes a batch call.
var (
	ErrResolutionNotFound     = errors.New("no data-source mapping")
	ErrCatalogFetch           = errors.New("filing catalog fetch failed")
	ErrDocumentFetch          = errors.New("document fetch failed")
	ErrNoMatchAfterExhaustion = errors.New("no match after exhausting scan budget")
	ErrParse                  = errors.New("document parse produced no rows")
)

// Extractor is the extraction orchestrator. It owns the cache and runs
// strictly sequentially; the upstream rate contract forbids fan-out.
type Extractor struct {
	resolver    *resolver.Resolver
	catalog     *catalog.Client
	tabular     *feeds.TabularClient
	composition *feeds.CompositionClient
	cache       *store.HoldingsCache
	logger      *log.Logger
	verbose     bool
}

// New wires an extractor from its collaborators. cache may be nil (no
// caching); tabular/composition may be nil when those sources are unused.
func New(res *resolver.Resolver, cat *catalog.Client, tab *feeds.TabularClient, comp *feeds.CompositionClient, cache *store.HoldingsCache) *Extractor {
	return &Extractor{
		resolver:    res,
		catalog:     cat,
		tabular:     tab,
		composition: comp,
		cache:       cache,
	}
}

// SetVerbose enables progress logging.
func (e *Extractor) SetVerbose(v bool) { e.verbose = v }

// SetLogger directs diagnostic output.
func (e *Extractor) SetLogger(l *log.Logger) { e.logger = l }

func (e *Extractor) logf(format string, args ...interface{}) {
	if !e.verbose {
		return
	}
	if e.logger != nil {
		e.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Extract runs one bounded, synchronous lookup for a ticker. It never returns
// an error: every failure mode lands in the result note.
func (e *Extractor) Extract(ctx context.Context, ticker string, maxFilings int) models.ExtractionResult {
	symbol := resolver.Normalize(ticker)
	if maxFilings <= 0 {
		maxFilings = DefaultMaxFilings
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, symbol, maxFilings); ok {
			e.logf("[DEBUG] %s served from cache (%d rows)", symbol, len(cached.Rows))
			return *cached
		}
	}

	mapping := e.resolver.Resolve(ctx, symbol)
	var result models.ExtractionResult
	switch mapping.Kind {
	case models.SourceTabularFeed:
		result = e.extractTabular(ctx, symbol, mapping.Tabular)
	case models.SourceCompositionAPI:
		result = e.extractComposition(ctx, symbol, mapping.Composition)
	case models.SourceRegulatoryFiling:
		result = e.extractFromFilings(ctx, symbol, mapping.Regulatory, maxFilings)
	default:
		result = e.unresolvedResult(symbol, mapping.Reason)
	}

	if result.OK() && e.cache != nil {
		if err := e.cache.Put(ctx, symbol, maxFilings, result); err != nil {
			e.logf("[WARNING] cache write for %s failed: %v", symbol, err)
		}
	}
	return result
}

// ExtractMany processes tickers one at a time in input order. A per-ticker
// failure never aborts the batch; interruption is honored between tickers and
// already-committed cache entries stay valid.
func (e *Extractor) ExtractMany(ctx context.Context, tickers []string, maxFilings int) models.BatchResult {
	batch := models.BatchResult{
		PerTicker: make(map[string]models.ExtractionResult, len(tickers)),
	}

	for _, ticker := range tickers {
		symbol := resolver.Normalize(ticker)
		e.logf("[DEBUG] processing %s...", symbol)

		var result models.ExtractionResult
		if ctx.Err() != nil {
			result = models.ExtractionResult{Ticker: symbol, Note: "Interrupted before processing."}
		} else {
			result = e.Extract(ctx, symbol, maxFilings)
		}

		batch.PerTicker[symbol] = result
		if len(result.Rows) > 0 {
			batch.Summary.WithHoldings++
			batch.ConsolidatedRows = append(batch.ConsolidatedRows, result.Rows...)
		}
		batch.Summary.Processed++
	}

	batch.Summary.TotalPositions = len(batch.ConsolidatedRows)
	return batch
}

func (e *Extractor) unresolvedResult(symbol string, reason models.UnresolvedReason) models.ExtractionResult {
	note := "CIK/series not found via known trusts; auto-discovery disabled."
	if reason == models.ReasonDiscoveryFailed {
		note = "CIK/series not found via known trusts or entity-directory discovery."
	}
	e.logf("[DEBUG] %s: %v (%s)", symbol, ErrResolutionNotFound, note)
	return models.ExtractionResult{Ticker: symbol, Note: note}
}

func (e *Extractor) extractTabular(ctx context.Context, symbol string, m *models.TabularMapping) models.ExtractionResult {
	if e.tabular == nil {
		e.logf("[WARNING] %s: tabular feed client not configured", symbol)
		return models.ExtractionResult{Ticker: symbol, Note: "Tabular feed client not configured."}
	}
	content, err := e.tabular.Fetch(ctx, m.ProductID)
	if err != nil {
		e.logf("[WARNING] %s: %v", symbol, fmt.Errorf("%w: %v", ErrDocumentFetch, err))
		return models.ExtractionResult{Ticker: symbol, Note: fmt.Sprintf("Tabular feed error: %v.", err)}
	}
	rows := parsers.ParseTabularFeed(content, symbol)
	if len(rows) == 0 {
		e.logf("[WARNING] %s: %v", symbol, ErrParse)
		return models.ExtractionResult{Ticker: symbol, Note: "Tabular feed returned no holdings."}
	}
	return models.ExtractionResult{
		Ticker: symbol,
		Rows:   rows,
		Note:   fmt.Sprintf("%s tabular feed (%d positions)", models.SuccessNotePrefix, len(rows)),
	}
}

func (e *Extractor) extractComposition(ctx context.Context, symbol string, m *models.CompositionMapping) models.ExtractionResult {
	if e.composition == nil {
		e.logf("[WARNING] %s: composition API client not configured", symbol)
		return models.ExtractionResult{Ticker: symbol, Note: "Composition API client not configured."}
	}
	content, err := e.composition.Fetch(ctx, m.ProductID, m.BaseURL, m.Context)
	if err != nil {
		e.logf("[WARNING] %s: %v", symbol, fmt.Errorf("%w: %v", ErrDocumentFetch, err))
		return models.ExtractionResult{Ticker: symbol, Note: fmt.Sprintf("Composition API error: %v.", err)}
	}
	rows, asOf := parsers.ParseComposition(content, symbol)
	if len(rows) == 0 {
		e.logf("[WARNING] %s: %v", symbol, ErrParse)
		return models.ExtractionResult{Ticker: symbol, Note: "Composition API returned no holdings."}
	}
	note := fmt.Sprintf("%s composition API (%d positions)", models.SuccessNotePrefix, len(rows))
	if asOf != "" {
		note = fmt.Sprintf("%s composition API as of %s (%d positions)", models.SuccessNotePrefix, asOf, len(rows))
	}
	return models.ExtractionResult{Ticker: symbol, Rows: rows, Note: note}
}

// extractFromFilings walks the registrant's filing history newest first,
// bounded by maxFilings and the mapping's scan budget, and returns the first
// candidate that passes the content pre-filter and parses into rows. Later,
// potentially staler filings are never consulted after a success.
//
// Without a series constraint, the scan budget is a hard stop: once it is
// spent on signal-free previews the walk ends, even when more filings remain
// under maxFilings. A signaled filing further down would be staler than the
// whole stretch already rejected, so it is not worth the extra archive trips.
func (e *Extractor) extractFromFilings(ctx context.Context, symbol string, m *models.RegulatoryMapping, maxFilings int) models.ExtractionResult {
	filings, err := e.catalog.ListFilings(ctx, m.RegistrantID, nportFormPrefixes)
	if err != nil {
		e.logf("[WARNING] %s: %v", symbol, fmt.Errorf("%w: %v", ErrCatalogFetch, err))
		return models.ExtractionResult{Ticker: symbol, Note: fmt.Sprintf("Filing catalog error: %v.", err)}
	}
	if len(filings) == 0 {
		return models.ExtractionResult{Ticker: symbol, Note: "No N-PORT filings found for this CIK."}
	}

	candidates := filings
	if len(candidates) > maxFilings {
		candidates = candidates[:maxFilings]
	}
	e.logf("[DEBUG] %s: checking up to %d of %d N-PORT filings", symbol, len(candidates), len(filings))

	budget := m.ScanDepth
	if budget <= 0 {
		budget = resolver.DefaultScanDepth
	}

	checked := 0
	seriesMisses := 0
	for _, filing := range candidates {
		if ctx.Err() != nil {
			return models.ExtractionResult{
				Ticker: symbol,
				Note:   fmt.Sprintf("Interrupted after checking %d filings.", checked),
			}
		}
		checked++
		if checked%10 == 0 {
			e.logf("[DEBUG] %s: checked %d/%d filings...", symbol, checked, len(candidates))
		}

		base, entries, err := e.catalog.FetchManifest(ctx, m.RegistrantID, filing.AccessionID)
		if err != nil {
			e.logf("[DEBUG] %s: %v", symbol, fmt.Errorf("%w: %v", ErrCatalogFetch, err))
			continue
		}
		docName, ok := disambig.PickDocument(entries)
		if !ok {
			continue
		}
		content, err := e.catalog.FetchDocument(ctx, base, docName)
		if err != nil {
			e.logf("[DEBUG] %s: %v", symbol, fmt.Errorf("%w: %v", ErrDocumentFetch, err))
			continue
		}

		match := disambig.MatchesFund(content, symbol, m)
		if m.SeriesID != "" {
			// An exact series hit is authoritative, but ticker and alias
			// signals still qualify; only a signal-free preview is a miss.
			if match == disambig.MatchNone {
				seriesMisses++
				if seriesMisses >= seriesMissWindow {
					break
				}
				continue
			}
			seriesMisses = 0
		} else if match == disambig.MatchNone {
			if checked >= budget {
				break
			}
			continue
		}

		e.logf("[DEBUG] %s: match in filing %s, parsing...", symbol, filing.FilingDate)
		rows := parsers.ParseFilingXML(content, symbol)
		if len(rows) == 0 {
			e.logf("[DEBUG] %s: %v (%s)", symbol, ErrParse, filing.FilingDate)
			continue
		}

		return models.ExtractionResult{
			Ticker: symbol,
			Rows:   rows,
			Note: fmt.Sprintf("%s %s %s (checked %d filings)",
				models.SuccessNotePrefix, filing.FormType, filing.FilingDate, checked),
		}
	}

	e.logf("[DEBUG] %s: %v", symbol, ErrNoMatchAfterExhaustion)
	return models.ExtractionResult{
		Ticker: symbol,
		Note:   fmt.Sprintf("No holdings found after checking %d filings.", checked),
	}
}
