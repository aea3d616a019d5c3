// Package feeds fetches non-filing holdings sources: delimited tabular
// downloads and composition-API responses. Like the catalog client, every
// request is spaced by a fixed minimum delay.
package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTabularURLTemplate = "https://www.ssga.com/library-content/products/fund-data/etfs/us/holdings-daily-us-en-%s.csv"
	defaultCompositionURL     = "https://www.us-api.blackrock.com/fund-composition/v1/holdings"
	defaultUserAgent          = "etf-holdings-lib/1.0 (contact: holdings@example.com)"
	defaultDelay              = 200 * time.Millisecond
	defaultTimeout            = 30 * time.Second
)

// throttledDoer spaces requests by a fixed minimum delay.
type throttledDoer struct {
	client      *http.Client
	delay       time.Duration
	lastRequest time.Time
	userAgent   string
}

func newThrottledDoer(delay time.Duration, userAgent string) *throttledDoer {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &throttledDoer{
		client:    &http.Client{Timeout: defaultTimeout},
		delay:     delay,
		userAgent: userAgent,
	}
}

func (d *throttledDoer) do(req *http.Request) ([]byte, error) {
	if d.delay > 0 {
		if elapsed := time.Since(d.lastRequest); elapsed < d.delay {
			time.Sleep(d.delay - elapsed)
		}
	}
	d.lastRequest = time.Now()

	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// TabularClient downloads delimited holdings files, one GET per ticker.
type TabularClient struct {
	doer        *throttledDoer
	urlTemplate string
}

// NewTabularClient creates a tabular feed client. urlTemplate must contain one
// %s verb for the product identifier; empty selects the default feed.
func NewTabularClient(urlTemplate, userAgent string, delay time.Duration) *TabularClient {
	if urlTemplate == "" {
		urlTemplate = defaultTabularURLTemplate
	}
	return &TabularClient{
		doer:        newThrottledDoer(delay, userAgent),
		urlTemplate: urlTemplate,
	}
}

// Fetch retrieves the delimited holdings payload for a product.
func (c *TabularClient) Fetch(ctx context.Context, productID string) ([]byte, error) {
	url := fmt.Sprintf(c.urlTemplate, strings.ToLower(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	body, err := c.doer.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tabular feed %s: %w", productID, err)
	}
	return body, nil
}

// CompositionClient posts composition requests to a fund-page API.
type CompositionClient struct {
	doer    *throttledDoer
	baseURL string
	fields  []string
}

// compositionRequest is the POST body the composition API expects.
type compositionRequest struct {
	ProductIDs        []string          `json:"productIds"`
	Context           map[string]string `json:"context,omitempty"`
	CompositionFields []string          `json:"compositionFields"`
}

// NewCompositionClient creates a composition-API client. baseURL empty selects
// the default endpoint.
func NewCompositionClient(baseURL, userAgent string, delay time.Duration) *CompositionClient {
	if baseURL == "" {
		baseURL = defaultCompositionURL
	}
	return &CompositionClient{
		doer:    newThrottledDoer(delay, userAgent),
		baseURL: baseURL,
		fields: []string{
			"name", "weight", "quantity", "isin", "cusip", "currency",
			"sector", "country", "countryOfRisk", "securityType",
			"bloombergId", "asOfDate",
		},
	}
}

// Fetch posts a single composition request for a product. baseURL overrides
// the client endpoint when the mapping pins one.
func (c *CompositionClient) Fetch(ctx context.Context, productID, baseURL string, reqContext map[string]string) ([]byte, error) {
	url := c.baseURL
	if baseURL != "" {
		url = baseURL
	}

	payload, err := json.Marshal(compositionRequest{
		ProductIDs:        []string{productID},
		Context:           reqContext,
		CompositionFields: c.fields,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.doer.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch composition for %s: %w", productID, err)
	}
	return body, nil
}
