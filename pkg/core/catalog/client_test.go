package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const submissionsFixture = `{
  "cik": "36405",
  "name": "VANGUARD INDEX FUNDS",
  "filings": {
    "recent": {
      "accessionNumber": ["0000036405-24-000010", "0000036405-24-000008", "0000036405-23-000099", "0000036405-24-000009"],
      "filingDate": ["2024-03-01", "2024-01-15", "2023-11-30", "2024-02-10"],
      "form": ["NPORT-P", "10-K", "NPORT-EX", "NPORT-P"],
      "primaryDocument": ["primary_doc.xml", "annual.htm", "nportex.xml", "primary_doc.xml"]
    }
  }
}`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(
		WithBaseURLs(server.URL, server.URL),
		WithDelay(0),
	)
	return client, server
}

func TestListFilings(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/submissions/CIK0000036405.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing User-Agent header")
		}
		fmt.Fprint(w, submissionsFixture)
	}))

	filings, err := client.ListFilings(context.Background(), "36405", []string{"NPORT-P", "NPORT-EX"})
	if err != nil {
		t.Fatalf("ListFilings failed: %v", err)
	}
	if len(filings) != 3 {
		t.Fatalf("expected 3 filings after form filter, got %d", len(filings))
	}

	// Newest first.
	wantDates := []string{"2024-03-01", "2024-02-10", "2023-11-30"}
	for i, f := range filings {
		if f.FilingDate != wantDates[i] {
			t.Errorf("filing %d date = %s, want %s", i, f.FilingDate, wantDates[i])
		}
	}

	if filings[0].AccessionID != "000003640524000010" {
		t.Errorf("accession dashes not stripped: %q", filings[0].AccessionID)
	}
	if filings[0].FormType != "NPORT-P" || filings[0].PrimaryDocument != "primary_doc.xml" {
		t.Errorf("filing fields wrong: %+v", filings[0])
	}
	for _, f := range filings {
		if f.FormType == "10-K" {
			t.Error("form filter let a non-matching form through")
		}
	}
}

func TestListFilingsHTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	if _, err := client.ListFilings(context.Background(), "36405", []string{"NPORT"}); err == nil {
		t.Error("expected an error on HTTP 429")
	}
}

func TestFetchManifestJSON(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Archives/edgar/data/36405/000003640524000010/index.json" {
			fmt.Fprint(w, `{"directory": {"item": [{"name": "primary_doc.xml"}, {"name": "index.htm"}, {"name": ""}]}}`)
			return
		}
		http.NotFound(w, r)
	}))

	base, entries, err := client.FetchManifest(context.Background(), "0000036405", "000003640524000010")
	if err != nil {
		t.Fatalf("FetchManifest failed: %v", err)
	}
	wantBase := server.URL + "/Archives/edgar/data/36405/000003640524000010"
	if base != wantBase {
		t.Errorf("base = %q, want %q", base, wantBase)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries (empty name dropped), got %d", len(entries))
	}
	if entries[0].Name != "primary_doc.xml" {
		t.Errorf("entry 0 = %q", entries[0].Name)
	}
}

func TestFetchManifestHTMLFallback(t *testing.T) {
	listing := `<html><body><table>
		<tr><td><a href="/Archives/edgar/data/36405/">Parent</a></td></tr>
		<tr><td><a href="primary_doc.xml">primary_doc.xml</a></td></tr>
		<tr><td><a href="nport_ex.xml">nport_ex.xml</a></td></tr>
		<tr><td><a href="primary_doc.xml">primary_doc.xml</a></td></tr>
		<tr><td><a href="?action=sort">sort</a></td></tr>
	</table></body></html>`
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Archives/edgar/data/36405/000003640524000010/index.json":
			http.NotFound(w, r)
		case "/Archives/edgar/data/36405/000003640524000010/":
			fmt.Fprint(w, listing)
		default:
			http.NotFound(w, r)
		}
	}))

	_, entries, err := client.FetchManifest(context.Background(), "36405", "000003640524000010")
	if err != nil {
		t.Fatalf("FetchManifest failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 deduplicated file entries, got %d: %v", len(entries), entries)
	}
	if entries[0].Name != "primary_doc.xml" || entries[1].Name != "nport_ex.xml" {
		t.Errorf("entries = %v", entries)
	}
}

func TestFetchDocument(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Archives/edgar/data/36405/acc/primary_doc.xml" {
			fmt.Fprint(w, "<xml/>")
			return
		}
		http.NotFound(w, r)
	}))

	body, err := client.FetchDocument(context.Background(), server.URL+"/Archives/edgar/data/36405/acc", "primary_doc.xml")
	if err != nil {
		t.Fatalf("FetchDocument failed: %v", err)
	}
	if string(body) != "<xml/>" {
		t.Errorf("body = %q", body)
	}
}

func TestThrottleSpacesRequests(t *testing.T) {
	var timestamps []time.Time
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timestamps = append(timestamps, time.Now())
		fmt.Fprint(w, `{"directory": {"item": []}}`)
	}))
	client.delay = 50 * time.Millisecond

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		client.fetchURL(ctx, client.dataBase+"/anything")
	}
	if len(timestamps) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(timestamps))
	}
	for i := 1; i < len(timestamps); i++ {
		if gap := timestamps[i].Sub(timestamps[i-1]); gap < 40*time.Millisecond {
			t.Errorf("request gap %v below the configured spacing", gap)
		}
	}
}

func TestRegistrantIDHelpers(t *testing.T) {
	if got := PadRegistrantID("36405"); got != "0000036405" {
		t.Errorf("PadRegistrantID = %q", got)
	}
	if got := PadRegistrantID("0000036405"); got != "0000036405" {
		t.Errorf("PadRegistrantID idempotence broken: %q", got)
	}
	if got := TrimRegistrantID("0000036405"); got != "36405" {
		t.Errorf("TrimRegistrantID = %q", got)
	}
	if got := TrimRegistrantID("0"); got != "0" {
		t.Errorf("TrimRegistrantID zero = %q", got)
	}
}
