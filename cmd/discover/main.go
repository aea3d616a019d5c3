// Command discover finds candidate registrant identifiers for tickers that
// are not in the curated mapping tables, and trial-extracts against each
// candidate to verify it actually files holdings disclosures.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"etf_holdings/pkg/core/catalog"
	"etf_holdings/pkg/core/discovery"
	"etf_holdings/pkg/core/extract"
	"etf_holdings/pkg/core/resolver"
	"etf_holdings/pkg/models"
)

const trialMaxFilings = 10

func main() {
	godotenv.Load()

	verbose := flag.Bool("verbose", false, "log progress details")
	flag.Parse()

	tickers := flag.Args()
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "usage: discover [flags] TICKER [TICKER...]")
		os.Exit(2)
	}

	userAgent := os.Getenv("HOLDINGS_USER_AGENT")
	delay := 200 * time.Millisecond

	directory := discovery.NewClient("", userAgent, delay)
	cat := catalog.NewClient(catalog.WithUserAgent(userAgent), catalog.WithDelay(delay))

	ctx := context.Background()
	for _, ticker := range tickers {
		symbol := resolver.Normalize(ticker)
		fmt.Printf("Discovering %s...\n", symbol)

		candidates, err := directory.LookupRegistrants(ctx, symbol)
		if err != nil {
			log.Printf("[WARNING] directory lookup failed for %s: %v", symbol, err)
			continue
		}
		if len(candidates) == 0 {
			fmt.Printf("  no entity-directory matches for %s\n", symbol)
			continue
		}

		found := false
		for i, cand := range candidates {
			fmt.Printf("  testing %d/%d: %s (registrant %s)\n", i+1, len(candidates), cand.Title, cand.RegistrantID)

			res := resolver.New(nil)
			res.AddRegulatory(symbol, models.RegulatoryMapping{RegistrantID: cand.RegistrantID})
			extractor := extract.New(res, cat, nil, nil, nil)
			extractor.SetVerbose(*verbose)

			result := extractor.Extract(ctx, symbol, trialMaxFilings)
			if len(result.Rows) > 0 {
				fmt.Printf("  SUCCESS: %d holdings via registrant %s\n", len(result.Rows), cand.RegistrantID)
				fmt.Printf("  mapping entry:\n    %s: {registrant_id: %q}\n", symbol, cand.RegistrantID)
				found = true
				break
			}
			fmt.Printf("  no holdings: %s\n", result.Note)
		}
		if !found {
			fmt.Printf("  discovery failed for %s: %d candidates, none with extractable holdings\n", symbol, len(candidates))
		}
	}
}
