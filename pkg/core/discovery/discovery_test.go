package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

const directoryFixture = `{
  "0": {"cik_str": 36405, "ticker": "VTI", "title": "VANGUARD INDEX FUNDS"},
  "1": {"cik_str": 1064642, "ticker": "RSP", "title": "INVESCO EXCHANGE-TRADED FUND TRUST"},
  "2": {"cik_str": 999999, "ticker": "OTHER", "title": "SOMETHING WITH VTI IN THE NAME"},
  "3": {"cik_str": 888888, "ticker": "XYZ", "title": "UNRELATED HOLDINGS CORP"}
}`

func newTestClient(t *testing.T, status int, payload string) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "error", status)
			return
		}
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-agent/1.0", 0)
}

func TestLookupRegistrants(t *testing.T) {
	client := newTestClient(t, http.StatusOK, directoryFixture)

	candidates, err := client.LookupRegistrants(context.Background(), " vti ")
	if err != nil {
		t.Fatalf("LookupRegistrants failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates (exact + title), got %d: %v", len(candidates), candidates)
	}

	// Exact ticker matches come before title-word matches.
	if candidates[0].Ticker != "VTI" || candidates[0].RegistrantID != "0000036405" {
		t.Errorf("first candidate should be the exact ticker match: %+v", candidates[0])
	}
	if candidates[1].RegistrantID != "0000999999" {
		t.Errorf("second candidate should be the title match: %+v", candidates[1])
	}
}

func TestLookupRegistrantsStableOrder(t *testing.T) {
	// Several entities can list the same ticker; the directory payload is an
	// unordered object, so the candidate order must be imposed, not inherited.
	fixture := `{
	  "0": {"cik_str": 555555, "ticker": "DUPX", "title": "LATER TRUST"},
	  "1": {"cik_str": 111111, "ticker": "DUPX", "title": "EARLIER TRUST"},
	  "2": {"cik_str": 999999, "ticker": "OTHER", "title": "DUPX NAME MATCH B"},
	  "3": {"cik_str": 777777, "ticker": "OTHER", "title": "DUPX NAME MATCH A"}
	}`
	client := newTestClient(t, http.StatusOK, fixture)

	for i := 0; i < 5; i++ {
		candidates, err := client.LookupRegistrants(context.Background(), "DUPX")
		if err != nil {
			t.Fatalf("LookupRegistrants failed: %v", err)
		}
		got := make([]string, len(candidates))
		for j, c := range candidates {
			got[j] = c.RegistrantID
		}
		want := []string{"0000111111", "0000555555", "0000777777", "0000999999"}
		if len(got) != len(want) {
			t.Fatalf("candidates = %v, want %v", got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("run %d: candidates = %v, want %v", i, got, want)
			}
		}
	}
}

func TestLookupRegistrantsNoMatch(t *testing.T) {
	client := newTestClient(t, http.StatusOK, directoryFixture)
	candidates, err := client.LookupRegistrants(context.Background(), "ZZZZ")
	if err != nil {
		t.Fatalf("LookupRegistrants failed: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %v", candidates)
	}
}

func TestLookupRegistrantsHTTPError(t *testing.T) {
	client := newTestClient(t, http.StatusServiceUnavailable, "")
	if _, err := client.LookupRegistrants(context.Background(), "VTI"); err == nil {
		t.Error("expected an error on HTTP 503")
	}
}

func TestLookupRegistrantsBadPayload(t *testing.T) {
	client := newTestClient(t, http.StatusOK, "<html>maintenance</html>")
	if _, err := client.LookupRegistrants(context.Background(), "VTI"); err == nil {
		t.Error("expected an error on an unparseable directory")
	}
}

func TestResolverFunc(t *testing.T) {
	client := newTestClient(t, http.StatusOK, directoryFixture)
	resolve := client.ResolverFunc()

	id, err := resolve(context.Background(), "rsp")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "0001064642" {
		t.Errorf("registrant = %q, want 0001064642", id)
	}

	// Title-only matches are not good enough for the resolver hook.
	id, err = resolve(context.Background(), "UNRELATED")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != "" {
		t.Errorf("title-word match must not resolve, got %q", id)
	}
}

func TestTitleMentions(t *testing.T) {
	cases := []struct {
		title, symbol string
		want          bool
	}{
		{"VANGUARD INDEX FUNDS (VTI)", "VTI", true},
		{"vti trust", "VTI", true},
		{"ACTIVITIES CORP", "VTI", false},
		{"", "VTI", false},
	}
	for _, tc := range cases {
		if got := titleMentions(tc.title, tc.symbol); got != tc.want {
			t.Errorf("titleMentions(%q, %q) = %v, want %v", tc.title, tc.symbol, got, tc.want)
		}
	}
}
