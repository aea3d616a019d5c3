package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compositionResponse = `{
  "data": {
    "products": [
      {
        "compositions": [
          {
            "name": "Cameco Corp",
            "weight": 0.0325,
            "quantity": 1500000,
            "characteristics": {
              "isin": "CA13321L1085",
              "cusip": "13321L108",
              "currency": "CAD",
              "sector": "Energy",
              "country": "Canada",
              "countryOfRisk": "CA",
              "securityType": "Common Stock",
              "bloombergId": "CCJ US",
              "asOfDate": "2026-08-28"
            }
          },
          {
            "name": "BWX Technologies Inc",
            "weight": 0.021,
            "quantity": 123456.5,
            "characteristics": {
              "cusip": "05605H100",
              "currency": "USD"
            }
          }
        ]
      }
    ]
  }
}`

func TestParseComposition(t *testing.T) {
	rows, asOf := ParseComposition([]byte(compositionResponse), "NLR")
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "NLR", first.FundTicker)
	assert.Equal(t, "Cameco Corp", first.Issuer)
	assert.Equal(t, "3.25", first.WeightPct, "fractional weight must become a percentage")
	assert.Equal(t, "1500000", first.Balance)
	assert.Equal(t, "CA13321L1085", first.Isin)
	assert.Equal(t, "CCJ US", first.BloombergID)
	assert.Equal(t, "2026-08-28", first.AsOfDate)
	assert.Equal(t, "2026-08-28", asOf, "as-of date comes from the first entry that carries one")

	second := rows[1]
	assert.Equal(t, "2.1", second.WeightPct)
	assert.Equal(t, "123456.5", second.Balance)
	assert.Empty(t, second.Isin)
}

func TestParseCompositionAlternateNesting(t *testing.T) {
	flat := `{"compositions": [{"name": "Only Co", "weight": 1.0}]}`
	rows, asOf := ParseComposition([]byte(flat), "XSHQ")
	require.Len(t, rows, 1)
	assert.Equal(t, "Only Co", rows[0].Issuer)
	assert.Equal(t, "100", rows[0].WeightPct)
	assert.Empty(t, asOf)
}

func TestParseCompositionRepairsSloppyJSON(t *testing.T) {
	sloppy := "\ufeff" + `{"compositions": [{"name": "Trailing Co", "weight": 0.5,},],}`
	rows, _ := ParseComposition([]byte(sloppy), "NLR")
	require.Len(t, rows, 1)
	assert.Equal(t, "Trailing Co", rows[0].Issuer)
	assert.Equal(t, "50", rows[0].WeightPct)
}

func TestParseCompositionSkipsNamelessEntries(t *testing.T) {
	payload := `{"compositions": [{"weight": 0.5}, {"name": "Real Co", "weight": 0.25}, "not an object"]}`
	rows, _ := ParseComposition([]byte(payload), "NLR")
	require.Len(t, rows, 1)
	assert.Equal(t, "Real Co", rows[0].Issuer)
}

func TestParseCompositionTotalOnGarbage(t *testing.T) {
	for _, input := range [][]byte{nil, []byte(""), []byte("<html>rate limited</html>"), []byte(`{"data": {}}`)} {
		rows, asOf := ParseComposition(input, "NLR")
		assert.Empty(t, rows)
		assert.Empty(t, asOf)
	}
}

func TestParseCompositionIdempotent(t *testing.T) {
	first, _ := ParseComposition([]byte(compositionResponse), "NLR")
	second, _ := ParseComposition([]byte(compositionResponse), "NLR")
	assert.Equal(t, first, second)
}
