// Package discovery looks unknown tickers up in the provider's public entity
// directory. Matches are best effort: a hit only means the registrant's name
// or listed ticker resembles the symbol, not that it files the target
// disclosure type, so callers must trial-extract before trusting one.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultDirectoryURL = "https://www.sec.gov/files/company_tickers.json"
	defaultUserAgent    = "etf-holdings-lib/1.0 (contact: holdings@example.com)"
	defaultDelay        = 200 * time.Millisecond
)

// Candidate is one possible registrant for a ticker.
type Candidate struct {
	RegistrantID string
	Ticker       string
	Title        string
}

// Client queries the entity directory.
type Client struct {
	httpClient   *http.Client
	directoryURL string
	userAgent    string
	delay        time.Duration
	lastRequest  time.Time
	logger       *log.Logger
}

// NewClient creates a directory client. Empty arguments select defaults.
func NewClient(directoryURL, userAgent string, delay time.Duration) *Client {
	if directoryURL == "" {
		directoryURL = defaultDirectoryURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		directoryURL: directoryURL,
		userAgent:    userAgent,
		delay:        delay,
	}
}

// SetLogger directs diagnostic output.
func (c *Client) SetLogger(l *log.Logger) { c.logger = l }

// directoryEntry mirrors one record of the entity directory payload, which is
// a JSON object keyed by arbitrary numeric strings.
type directoryEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// LookupRegistrants returns candidate registrants for a ticker: exact listed
// ticker matches first, then entities whose title mentions the symbol as a
// word, each group ordered by registrant id. The raw directory payload is
// staged in a scratch directory scoped to this attempt and removed on every
// exit path.
func (c *Client) LookupRegistrants(ctx context.Context, ticker string) ([]Candidate, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))

	var candidates []Candidate
	err := withScratchDir(func(dir string) error {
		raw, err := c.fetchDirectory(ctx, dir)
		if err != nil {
			return err
		}

		var entries map[string]directoryEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return fmt.Errorf("cannot parse entity directory: %w", err)
		}

		var titleMatches []Candidate
		for _, entry := range entries {
			cand := Candidate{
				RegistrantID: fmt.Sprintf("%010d", entry.CIK),
				Ticker:       strings.ToUpper(entry.Ticker),
				Title:        entry.Title,
			}
			switch {
			case cand.Ticker == symbol:
				candidates = append(candidates, cand)
			case titleMentions(entry.Title, symbol):
				titleMatches = append(titleMatches, cand)
			}
		}
		// The directory decodes into a map, so impose a stable order within
		// each group.
		byRegistrant := func(list []Candidate) func(i, j int) bool {
			return func(i, j int) bool { return list[i].RegistrantID < list[j].RegistrantID }
		}
		sort.Slice(candidates, byRegistrant(candidates))
		sort.Slice(titleMatches, byRegistrant(titleMatches))
		candidates = append(candidates, titleMatches...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Printf("[DEBUG] directory lookup for %s: %d candidates", symbol, len(candidates))
	}
	return candidates, nil
}

// ResolverFunc adapts the client to the resolver's discovery hook: the first
// exact-ticker candidate wins.
func (c *Client) ResolverFunc() func(ctx context.Context, ticker string) (string, error) {
	return func(ctx context.Context, ticker string) (string, error) {
		candidates, err := c.LookupRegistrants(ctx, ticker)
		if err != nil {
			return "", err
		}
		symbol := strings.ToUpper(strings.TrimSpace(ticker))
		for _, cand := range candidates {
			if cand.Ticker == symbol {
				return cand.RegistrantID, nil
			}
		}
		return "", nil
	}
}

// fetchDirectory downloads the directory payload, staging it in the scratch
// directory so a failed parse leaves nothing behind outside the attempt.
func (c *Client) fetchDirectory(ctx context.Context, scratchDir string) ([]byte, error) {
	if c.delay > 0 {
		if elapsed := time.Since(c.lastRequest); elapsed < c.delay {
			time.Sleep(c.delay - elapsed)
		}
	}
	c.lastRequest = time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.directoryURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch entity directory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot fetch entity directory: HTTP %d", resp.StatusCode)
	}

	staged := filepath.Join(scratchDir, "directory.json")
	f, err := os.Create(staged)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return os.ReadFile(staged)
}

// withScratchDir runs fn with a unique temporary directory that is removed on
// every exit path, including panics.
func withScratchDir(fn func(dir string) error) error {
	dir := filepath.Join(os.TempDir(), "etf-discovery-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	return fn(dir)
}

// titleMentions reports whether the entity title contains the symbol as a
// standalone word.
func titleMentions(title, symbol string) bool {
	for _, word := range strings.Fields(strings.ToUpper(title)) {
		if strings.Trim(word, ".,()") == symbol {
			return true
		}
	}
	return false
}
