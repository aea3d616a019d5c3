// Package store persists extraction results between runs. The primary store
// is a directory of JSON payload files plus a metadata index; an optional
// Postgres pool mirrors writes for shared deployments (nil pool keeps the
// cache purely file-based, which is the default).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"etf_holdings/pkg/models"
)

const indexFileName = "index.json"

// HoldingsCache caches ExtractionResults keyed by (ticker, maxFilings). Two
// lookups with different scan depths are distinct entries: a shallow scan may
// have failed where a deeper one would succeed.
//
// A ttl <= 0 disables both read and write paths entirely, so call sites never
// special-case a disabled cache.
type HoldingsCache struct {
	dir    string
	ttl    time.Duration
	pool   *pgxpool.Pool
	logger *log.Logger
	nowFn  func() time.Time
}

// cacheEnvelope is the on-disk payload: the result plus the cache stamp that
// is stripped before the result is handed back to a caller.
type cacheEnvelope struct {
	Ticker     string                  `json:"ticker"`
	MaxFilings int                     `json:"max_filings"`
	CachedAt   time.Time               `json:"cached_at"`
	Result     models.ExtractionResult `json:"result"`
}

// indexEntry is the metadata index record, kept beside the payloads so that
// aggregate statistics never require reading every payload file.
type indexEntry struct {
	Ticker     string    `json:"ticker"`
	MaxFilings int       `json:"max_filings"`
	CachedAt   time.Time `json:"cached_at"`
	Holdings   int       `json:"holdings_count"`
}

// CacheStats summarizes the cache without loading payloads.
type CacheStats struct {
	Enabled        bool                  `json:"enabled"`
	Dir            string                `json:"cache_dir"`
	TTLDays        float64               `json:"ttl_days"`
	TotalEntries   int                   `json:"total_cached_etfs"`
	TotalFiles     int                   `json:"total_files"`
	TotalSizeBytes int64                 `json:"total_size_bytes"`
	Entries        map[string]indexEntry `json:"cached_etfs"`
}

// NewHoldingsCache creates a cache rooted at dir. If pool is non-nil, writes
// are mirrored to Postgres and reads fall back to it on a file miss.
func NewHoldingsCache(dir string, ttl time.Duration, pool *pgxpool.Pool) *HoldingsCache {
	c := &HoldingsCache{dir: dir, ttl: ttl, pool: pool, nowFn: time.Now}
	if c.enabled() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("[WARNING] cannot create cache dir %s: %v", dir, err)
		}
	}
	return c
}

// SetLogger directs diagnostic output.
func (c *HoldingsCache) SetLogger(l *log.Logger) { c.logger = l }

func (c *HoldingsCache) enabled() bool { return c.ttl > 0 && c.dir != "" }

func (c *HoldingsCache) key(ticker string, maxFilings int) string {
	return fmt.Sprintf("%s_%d", strings.ToUpper(ticker), maxFilings)
}

func (c *HoldingsCache) payloadPath(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached result for the key, if present and unexpired.
// Expiry is checked lazily: an expired entry found here is removed.
func (c *HoldingsCache) Get(ctx context.Context, ticker string, maxFilings int) (*models.ExtractionResult, bool) {
	if !c.enabled() {
		return nil, false
	}
	key := c.key(ticker, maxFilings)

	data, err := os.ReadFile(c.payloadPath(key))
	if err == nil {
		var env cacheEnvelope
		if err := json.Unmarshal(data, &env); err == nil {
			if c.nowFn().Sub(env.CachedAt) < c.ttl {
				result := env.Result
				return &result, true
			}
			c.removeEntry(key)
		}
	}

	if c.pool != nil {
		return c.getFromDB(ctx, ticker, maxFilings)
	}
	return nil, false
}

// Put stores a result under (ticker, maxFilings) and updates the index.
func (c *HoldingsCache) Put(ctx context.Context, ticker string, maxFilings int, result models.ExtractionResult) error {
	if !c.enabled() {
		return nil
	}
	key := c.key(ticker, maxFilings)
	now := c.nowFn()

	env := cacheEnvelope{
		Ticker:     strings.ToUpper(ticker),
		MaxFilings: maxFilings,
		CachedAt:   now,
		Result:     result,
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal cache entry: %w", err)
	}
	if err := os.WriteFile(c.payloadPath(key), data, 0644); err != nil {
		return fmt.Errorf("cannot write cache entry: %w", err)
	}

	index := c.readIndex()
	index[key] = indexEntry{
		Ticker:     env.Ticker,
		MaxFilings: maxFilings,
		CachedAt:   now,
		Holdings:   len(result.Rows),
	}
	c.writeIndex(index)

	if c.pool != nil {
		if err := c.putToDB(ctx, env); err != nil && c.logger != nil {
			c.logger.Printf("[WARNING] cache DB mirror write failed: %v", err)
		}
	}
	return nil
}

// Clear removes entries for one ticker, or the whole cache when ticker is
// empty.
func (c *HoldingsCache) Clear(ticker string) error {
	if c.dir == "" {
		return nil
	}
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	index := c.readIndex()
	for key, entry := range index {
		if symbol != "" && entry.Ticker != symbol {
			continue
		}
		os.Remove(c.payloadPath(key))
		delete(index, key)
	}
	c.writeIndex(index)
	return nil
}

// Stats summarizes the cache from the metadata index and file sizes.
func (c *HoldingsCache) Stats() CacheStats {
	stats := CacheStats{
		Enabled: c.enabled(),
		Dir:     c.dir,
		TTLDays: c.ttl.Hours() / 24,
		Entries: map[string]indexEntry{},
	}
	if !c.enabled() {
		return stats
	}

	index := c.readIndex()
	tickers := map[string]bool{}
	for key, entry := range index {
		stats.Entries[key] = entry
		tickers[entry.Ticker] = true
		if info, err := os.Stat(c.payloadPath(key)); err == nil {
			stats.TotalFiles++
			stats.TotalSizeBytes += info.Size()
		}
	}
	stats.TotalEntries = len(tickers)
	return stats
}

// SweepExpired proactively removes every currently-invalid entry and reports
// how many were removed. This is the only way stale entries disappear without
// being read first.
func (c *HoldingsCache) SweepExpired() int {
	if !c.enabled() {
		return 0
	}
	now := c.nowFn()
	index := c.readIndex()
	removed := 0
	for key, entry := range index {
		if now.Sub(entry.CachedAt) < c.ttl {
			continue
		}
		os.Remove(c.payloadPath(key))
		delete(index, key)
		removed++
	}
	c.writeIndex(index)
	return removed
}

func (c *HoldingsCache) removeEntry(key string) {
	os.Remove(c.payloadPath(key))
	index := c.readIndex()
	delete(index, key)
	c.writeIndex(index)
}

func (c *HoldingsCache) readIndex() map[string]indexEntry {
	index := map[string]indexEntry{}
	data, err := os.ReadFile(filepath.Join(c.dir, indexFileName))
	if err != nil {
		return index
	}
	if err := json.Unmarshal(data, &index); err != nil {
		// A corrupt index is rebuilt over time by subsequent puts.
		return map[string]indexEntry{}
	}
	return index
}

func (c *HoldingsCache) writeIndex(index map[string]indexEntry) {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, indexFileName), data, 0644); err != nil && c.logger != nil {
		c.logger.Printf("[WARNING] cannot write cache index: %v", err)
	}
}

// Postgres mirror

func (c *HoldingsCache) getFromDB(ctx context.Context, ticker string, maxFilings int) (*models.ExtractionResult, bool) {
	query := `
		SELECT payload, cached_at
		FROM etf_holdings_cache
		WHERE ticker = $1 AND max_filings = $2
		LIMIT 1
	`
	var payload []byte
	var cachedAt time.Time
	err := c.pool.QueryRow(ctx, query, strings.ToUpper(ticker), maxFilings).Scan(&payload, &cachedAt)
	if err != nil {
		return nil, false
	}
	if c.nowFn().Sub(cachedAt) >= c.ttl {
		return nil, false
	}
	var result models.ExtractionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false
	}
	return &result, true
}

func (c *HoldingsCache) putToDB(ctx context.Context, env cacheEnvelope) error {
	payload, err := json.Marshal(env.Result)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO etf_holdings_cache (ticker, max_filings, cached_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker, max_filings)
		DO UPDATE SET cached_at = EXCLUDED.cached_at, payload = EXCLUDED.payload
	`
	_, err = c.pool.Exec(ctx, query, env.Ticker, env.MaxFilings, env.CachedAt, payload)
	return err
}
