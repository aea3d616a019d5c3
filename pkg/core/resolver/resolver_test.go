package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"etf_holdings/pkg/models"
)

func TestResolveBuiltinRegulatory(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	m := r.Resolve(ctx, "VTI")
	if m.Kind != models.SourceRegulatoryFiling {
		t.Fatalf("kind = %v, want regulatory", m.Kind)
	}
	if m.Regulatory.RegistrantID != "0000036405" {
		t.Errorf("registrant = %q", m.Regulatory.RegistrantID)
	}
	if m.Regulatory.SeriesID != "S000002848" {
		t.Errorf("series = %q", m.Regulatory.SeriesID)
	}
	if m.Regulatory.ScanDepth != 20 {
		t.Errorf("scan depth = %d, want 20", m.Regulatory.ScanDepth)
	}

	if got := r.Resolve(ctx, "RSP"); got.Regulatory == nil || got.Regulatory.ScanDepth != 0 {
		t.Error("RSP should carry no scan-depth override")
	}
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	upper := r.Resolve(ctx, "VTI")
	for _, variant := range []string{"vti", "Vti", "  vti  ", "VTI\n"} {
		got := r.Resolve(ctx, variant)
		if got.Kind != upper.Kind || got.Regulatory.RegistrantID != upper.Regulatory.RegistrantID {
			t.Errorf("Resolve(%q) differs from Resolve(VTI)", variant)
		}
	}
}

func TestResolveUnknownTicker(t *testing.T) {
	m := New(nil).Resolve(context.Background(), "ZZZZ")
	if m.Kind != models.SourceUnresolved {
		t.Fatalf("kind = %v, want unresolved", m.Kind)
	}
	if m.Reason != models.ReasonNoMapping {
		t.Errorf("reason = %v, want no-mapping", m.Reason)
	}
}

func TestResolvePrecedence(t *testing.T) {
	r := New(nil)
	ctx := context.Background()

	// A ticker present in the tabular table must win over its regulatory
	// entry, and composition wins over regulatory.
	r.tables.Tabular["RSP"] = models.TabularMapping{ProductID: "rsp"}
	if got := r.Resolve(ctx, "RSP"); got.Kind != models.SourceTabularFeed {
		t.Errorf("tabular entry did not take precedence: %v", got.Kind)
	}

	r.tables.Composition["NLR"] = models.CompositionMapping{ProductID: "251"}
	if got := r.Resolve(ctx, "NLR"); got.Kind != models.SourceCompositionAPI {
		t.Errorf("composition entry did not take precedence: %v", got.Kind)
	}
}

func TestResolveDiscovery(t *testing.T) {
	calls := 0
	r := New(func(ctx context.Context, ticker string) (string, error) {
		calls++
		if ticker == "NEWX" {
			return "0009999999", nil
		}
		return "", errors.New("not found")
	})
	ctx := context.Background()

	m := r.Resolve(ctx, "newx")
	if m.Kind != models.SourceRegulatoryFiling {
		t.Fatalf("kind = %v, want regulatory", m.Kind)
	}
	if m.Regulatory.RegistrantID != "0009999999" || !m.Regulatory.Discovered {
		t.Errorf("discovered mapping wrong: %+v", m.Regulatory)
	}

	if got := r.Resolve(ctx, "NOPE"); got.Kind != models.SourceUnresolved || got.Reason != models.ReasonDiscoveryFailed {
		t.Errorf("failed discovery should yield unresolved/discovery-failed, got %+v", got)
	}

	// Curated tickers never reach the discovery hook.
	before := calls
	r.Resolve(ctx, "VTI")
	if calls != before {
		t.Error("discovery invoked for a curated ticker")
	}
}

func TestLoadMappingsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	content := `
tabular:
  rsp:
    product_id: rsp
composition:
  nlr:
    product_id: "251"
    base_url: https://example.com/api
regulatory:
  vti:
    registrant_id: "0000000123"
  newf:
    registrant_id: "0000000456"
    series_id: S000099999
    scan_depth: 7
    aliases: [NEW FUND INDEX]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(nil)
	if err := r.LoadMappings(path); err != nil {
		t.Fatalf("LoadMappings failed: %v", err)
	}
	ctx := context.Background()

	if got := r.Resolve(ctx, "RSP"); got.Kind != models.SourceTabularFeed || got.Tabular.ProductID != "rsp" {
		t.Errorf("tabular mapping not loaded: %+v", got)
	}
	if got := r.Resolve(ctx, "NLR"); got.Kind != models.SourceCompositionAPI || got.Composition.BaseURL != "https://example.com/api" {
		t.Errorf("composition mapping not loaded: %+v", got)
	}
	// File entries override built-ins.
	if got := r.Resolve(ctx, "VTI"); got.Regulatory.RegistrantID != "0000000123" {
		t.Errorf("file entry did not override built-in: %+v", got.Regulatory)
	}
	got := r.Resolve(ctx, "NEWF")
	if got.Regulatory == nil || got.Regulatory.ScanDepth != 7 || got.Regulatory.SeriesID != "S000099999" {
		t.Errorf("new regulatory entry wrong: %+v", got.Regulatory)
	}
	if len(got.Regulatory.Aliases) != 1 || got.Regulatory.Aliases[0] != "NEW FUND INDEX" {
		t.Errorf("aliases not loaded: %+v", got.Regulatory.Aliases)
	}
}

func TestLoadMappingsHJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.hjson")
	content := `{
  // comments are fine here
  regulatory: {
    newh: {
      registrant_id: "0000000789"
    }
  }
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New(nil)
	if err := r.LoadMappings(path); err != nil {
		t.Fatalf("LoadMappings failed: %v", err)
	}
	got := r.Resolve(context.Background(), "NEWH")
	if got.Kind != models.SourceRegulatoryFiling || got.Regulatory.RegistrantID != "0000000789" {
		t.Errorf("HJSON mapping not loaded: %+v", got)
	}
}

func TestLoadMappingsMissingFile(t *testing.T) {
	if err := New(nil).LoadMappings(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing mapping file")
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"vti":     "VTI",
		"  rsp ":  "RSP",
		"FeNy":    "FENY",
		"AIQ\t":   "AIQ",
		"\n vonv": "VONV",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}
