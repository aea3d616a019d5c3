// Package catalog talks to the regulatory filing archive: filing history for
// a registrant, per-filing document manifests, and raw document bytes.
//
// Every request is separated from the previous one by a fixed minimum delay.
// The archive enforces traffic shaping and sustained violation risks access
// denial, so the delay is part of the client contract, not a tunable.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"etf_holdings/pkg/models"
)

const (
	defaultDataBaseURL     = "https://data.sec.gov"
	defaultArchivesBaseURL = "https://www.sec.gov"
	defaultUserAgent       = "etf-holdings-lib/1.0 (contact: holdings@example.com)"
	defaultDelay           = 200 * time.Millisecond
	defaultTimeout         = 30 * time.Second
)

// Client fetches filing catalog data. It is not safe for concurrent use; the
// engine runs strictly sequentially to honor the archive's rate contract.
type Client struct {
	httpClient  *http.Client
	dataBase    string
	archiveBase string
	userAgent   string
	delay       time.Duration
	lastRequest time.Time
	logger      *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURLs overrides the submission and archive endpoints (tests, mirrors).
func WithBaseURLs(dataBase, archiveBase string) Option {
	return func(c *Client) {
		c.dataBase = strings.TrimSuffix(dataBase, "/")
		c.archiveBase = strings.TrimSuffix(archiveBase, "/")
	}
}

// WithUserAgent sets the identifying User-Agent the archive requires.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithDelay sets the minimum spacing between requests.
func WithDelay(d time.Duration) Option {
	return func(c *Client) { c.delay = d }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger directs diagnostic output.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a catalog client with archive-safe defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		dataBase:    defaultDataBaseURL,
		archiveBase: defaultArchivesBaseURL,
		userAgent:   defaultUserAgent,
		delay:       defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// submissionsResponse mirrors the submissions API payload.
type submissionsResponse struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// RegistrantName fetches the registrant's display name, best effort.
func (c *Client) RegistrantName(ctx context.Context, registrantID string) string {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBase, PadRegistrantID(registrantID))
	body, err := c.fetchURL(ctx, url)
	if err != nil {
		return ""
	}
	var resp submissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Name
}

// ListFilings returns the registrant's filing history restricted to forms
// whose type starts with one of formPrefixes, sorted newest first.
func (c *Client) ListFilings(ctx context.Context, registrantID string, formPrefixes []string) ([]models.FilingSummary, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataBase, PadRegistrantID(registrantID))
	body, err := c.fetchURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch submissions: %w", err)
	}

	var resp submissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse submissions JSON: %w", err)
	}

	recent := resp.Filings.Recent
	var out []models.FilingSummary
	for i, form := range recent.Form {
		if !matchesPrefix(form, formPrefixes) {
			continue
		}
		if i >= len(recent.AccessionNumber) || i >= len(recent.FilingDate) {
			continue
		}
		summary := models.FilingSummary{
			FormType:    form,
			AccessionID: strings.ReplaceAll(recent.AccessionNumber[i], "-", ""),
			FilingDate:  recent.FilingDate[i],
		}
		if i < len(recent.PrimaryDocument) {
			summary.PrimaryDocument = recent.PrimaryDocument[i]
		}
		out = append(out, summary)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FilingDate > out[j].FilingDate
	})
	return out, nil
}

// FetchManifest returns the filing's base location and its document listing.
// It prefers the structured index.json; if that is missing or malformed it
// falls back to scraping the directory's HTML listing.
func (c *Client) FetchManifest(ctx context.Context, registrantID, accessionID string) (string, []models.DocumentManifestEntry, error) {
	base := fmt.Sprintf("%s/Archives/edgar/data/%s/%s", c.archiveBase, TrimRegistrantID(registrantID), accessionID)

	body, err := c.fetchURL(ctx, base+"/index.json")
	if err == nil {
		entries, jsonErr := parseManifestJSON(body)
		if jsonErr == nil && len(entries) > 0 {
			return base, entries, nil
		}
		if c.logger != nil {
			c.logger.Printf("[WARNING] index.json unusable for %s/%s, trying HTML listing", registrantID, accessionID)
		}
	}

	htmlBody, err := c.fetchURL(ctx, base+"/")
	if err != nil {
		return "", nil, fmt.Errorf("failed to fetch filing manifest: %w", err)
	}
	entries, err := parseManifestHTML(htmlBody)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse filing manifest: %w", err)
	}
	return base, entries, nil
}

// FetchDocument retrieves one manifest entry's raw bytes.
func (c *Client) FetchDocument(ctx context.Context, base, name string) ([]byte, error) {
	body, err := c.fetchURL(ctx, base+"/"+name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", name, err)
	}
	return body, nil
}

func parseManifestJSON(body []byte) ([]models.DocumentManifestEntry, error) {
	var index struct {
		Directory struct {
			Item []struct {
				Name string `json:"name"`
			} `json:"item"`
		} `json:"directory"`
	}
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, err
	}
	entries := make([]models.DocumentManifestEntry, 0, len(index.Directory.Item))
	for _, item := range index.Directory.Item {
		if item.Name == "" {
			continue
		}
		entries = append(entries, models.DocumentManifestEntry{Name: item.Name})
	}
	return entries, nil
}

// parseManifestHTML scrapes the archive's HTML directory listing. Links that
// navigate away from the filing directory (parent dirs, absolute URLs with
// paths) are skipped.
func parseManifestHTML(body []byte) ([]models.DocumentManifestEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}

	var entries []models.DocumentManifestEntry
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		name := href
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if name == "" || strings.HasPrefix(name, "?") || strings.Contains(name, "#") {
			return
		}
		if !strings.Contains(name, ".") {
			return
		}
		if seen[name] {
			return
		}
		seen[name] = true
		entries = append(entries, models.DocumentManifestEntry{Name: name})
	})
	return entries, nil
}

// fetchURL performs a rate-limited GET and returns the body on HTTP 200.
func (c *Client) fetchURL(ctx context.Context, url string) ([]byte, error) {
	c.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// throttle enforces the fixed minimum spacing between archive requests.
func (c *Client) throttle() {
	if c.delay <= 0 {
		c.lastRequest = time.Now()
		return
	}
	if elapsed := time.Since(c.lastRequest); elapsed < c.delay {
		time.Sleep(c.delay - elapsed)
	}
	c.lastRequest = time.Now()
}

func matchesPrefix(form string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(form, p) {
			return true
		}
	}
	return false
}

// PadRegistrantID left-pads a registrant identifier to the 10 digits the
// submissions API expects.
func PadRegistrantID(id string) string {
	id = strings.TrimLeft(id, "0")
	return fmt.Sprintf("%010s", id)
}

// TrimRegistrantID strips leading zeros for the archive path form.
func TrimRegistrantID(id string) string {
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	if _, err := strconv.Atoi(trimmed); err != nil {
		return id
	}
	return trimmed
}
