package parsers

import (
	"encoding/json"
	"log"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/shopspring/decimal"

	"etf_holdings/pkg/models"
)

// compositionPaths locate the composition entry list inside a provider
// response. Nesting varies between fund-page endpoints; candidates are tried
// in order and the first non-empty list wins.
var compositionPaths = []string{
	"$.data.products[0].compositions",
	"$.products[0].compositions",
	"$.product.compositions",
	"$.compositions",
}

// ParseComposition extracts rows from a composition-API response. The second
// return value is the as-of date reported by the first entry that carries one.
// Some fund-page endpoints emit sloppy JSON (BOM, trailing commas), so the
// payload is repaired before decoding.
func ParseComposition(content []byte, ticker string) (rows []models.Holding, asOf string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WARNING] composition parse panic: %v", r)
			rows, asOf = nil, ""
		}
	}()

	payload := strings.TrimPrefix(string(content), "\ufeff")
	if repaired, err := jsonrepair.RepairJSON(payload); err == nil && repaired != "" {
		payload = repaired
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		log.Printf("[WARNING] composition response for %s: %v", ticker, err)
		return nil, ""
	}

	var entries []interface{}
	for _, path := range compositionPaths {
		value, err := jsonpath.Get(path, doc)
		if err != nil {
			continue
		}
		if list, ok := value.([]interface{}); ok && len(list) > 0 {
			entries = list
			break
		}
	}
	if len(entries) == 0 {
		return nil, ""
	}

	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name := stringField(entry, "name")
		if name == "" {
			continue
		}

		chars, _ := entry["characteristics"].(map[string]interface{})
		h := models.Holding{
			FundTicker:    ticker,
			Issuer:        name,
			Title:         name,
			Balance:       formatQuantity(entry["quantity"]),
			WeightPct:     formatWeight(entry["weight"]),
			Isin:          stringField(chars, "isin"),
			Cusip:         stringField(chars, "cusip"),
			Currency:      stringField(chars, "currency"),
			Sector:        stringField(chars, "sector"),
			Country:       stringField(chars, "country"),
			CountryOfRisk: stringField(chars, "countryOfRisk"),
			SecurityType:  stringField(chars, "securityType"),
			BloombergID:   stringField(chars, "bloombergId"),
			AsOfDate:      stringField(chars, "asOfDate"),
		}
		if asOf == "" && h.AsOfDate != "" {
			asOf = h.AsOfDate
		}
		rows = append(rows, h)
	}
	return rows, asOf
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// formatWeight converts a fraction (0.0325) to a percentage string with
// trailing zeros trimmed ("3.25").
func formatWeight(v interface{}) string {
	d, ok := toDecimal(v)
	if !ok {
		return ""
	}
	return d.Mul(decimal.NewFromInt(100)).String()
}

// formatQuantity renders whole quantities as plain integers and fractional
// ones as trimmed decimal strings.
func formatQuantity(v interface{}) string {
	d, ok := toDecimal(v)
	if !ok {
		return ""
	}
	return d.String()
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		trimmed := strings.TrimSpace(n)
		if trimmed == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
