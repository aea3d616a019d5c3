package parsers

import (
	"encoding/csv"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"etf_holdings/pkg/models"
)

// headerSignatures are the exact header rows the known tabular feeds emit,
// tried in order. Everything before the matching line is preamble and is
// discarded.
var headerSignatures = []string{
	"Name,Ticker,Identifier,SEDOL,Weight,Sector,Shares Held,Local Currency",
	"Ticker,Name,Identifier,SEDOL,Weight,Sector,Shares Held,Local Currency",
	"Name,Identifier,Weight,Sector,Shares Held,Local Currency",
}

// placeholderSymbols are symbol cells that mark non-position rows (cash
// buckets, footer separators).
var placeholderSymbols = map[string]bool{
	"-":    true,
	"--":   true,
	"N/A":  true,
	"CASH": true,
}

// ParseTabularFeed extracts rows from a delimited holdings download. The feed
// carries a variable-length preamble and footer around the record block; the
// header row is located by exact signature match and parsing starts after it.
func ParseTabularFeed(content []byte, ticker string) (rows []models.Holding) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARNING] tabular feed parse panic: %v", r)
			rows = nil
		}
	}()

	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.TrimPrefix(text, "\ufeff")

	lines := strings.Split(text, "\n")
	headerIdx := -1
	var header []string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, sig := range headerSignatures {
			if trimmed == sig {
				headerIdx = i
				header = strings.Split(sig, ",")
				break
			}
		}
		if headerIdx >= 0 {
			break
		}
	}
	if headerIdx < 0 {
		log.Printf("[WARNING] tabular feed for %s: no recognized header row", ticker)
		return nil
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(name)] = i
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx+1:], "\n")))
	reader.FieldsPerRecord = -1

	cell := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) < 2 {
			continue
		}

		symbol := cell(record, "ticker")
		name := cell(record, "name")
		if symbol == "" && name == "" {
			continue
		}
		if placeholderSymbols[strings.ToUpper(symbol)] {
			continue
		}

		rows = append(rows, models.Holding{
			FundTicker: ticker,
			Issuer:     name,
			Title:      name,
			Cusip:      cell(record, "identifier"),
			Balance:    cleanNumeric(cell(record, "shares held")),
			WeightPct:  cleanNumeric(cell(record, "weight")),
			Sector:     cell(record, "sector"),
			Currency:   cell(record, "local currency"),
		})
	}
	return rows
}

// cleanNumeric strips thousands separators, currency and percent symbols, and
// quoting from a numeric cell, keeping the value as a plain numeric string.
// Cells that do not survive as numbers are passed through untouched.
func cleanNumeric(s string) string {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.Trim(cleaned, `"`)
	for _, junk := range []string{",", "$", "%", " "} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}
	if cleaned == "" {
		return ""
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return s
	}
	return d.String()
}
