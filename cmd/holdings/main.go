// Command holdings extracts normalized holdings for one or more fund tickers
// and prints the batch result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	yaml "gopkg.in/yaml.v2"

	"etf_holdings/pkg/core/catalog"
	"etf_holdings/pkg/core/discovery"
	"etf_holdings/pkg/core/extract"
	"etf_holdings/pkg/core/feeds"
	"etf_holdings/pkg/core/resolver"
	"etf_holdings/pkg/core/store"
)

// Config is the engine configuration file (YAML).
type Config struct {
	UserAgent          string `yaml:"user_agent"`
	RequestDelayMs     int    `yaml:"request_delay_ms"`
	CacheDir           string `yaml:"cache_dir"`
	CacheTTLDays       int    `yaml:"cache_ttl_days"`
	MappingFile        string `yaml:"mapping_file"`
	TabularURLTemplate string `yaml:"tabular_url_template"`
	CompositionURL     string `yaml:"composition_url"`
	EnableDiscovery    bool   `yaml:"enable_discovery"`
}

func loadConfig(path string) Config {
	cfg := Config{
		RequestDelayMs: 200,
		CacheDir:       ".cache/etf_holdings",
		CacheTTLDays:   3,
	}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[WARNING] cannot read config %s: %v", path, err)
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Printf("[WARNING] cannot parse config %s: %v", path, err)
	}
	return cfg
}

func main() {
	godotenv.Load()

	configPath := flag.String("config", "", "path to YAML engine config")
	maxFilings := flag.Int("max-filings", extract.DefaultMaxFilings, "maximum filings to check per ticker")
	verbose := flag.Bool("verbose", false, "log progress details")
	noCache := flag.Bool("no-cache", false, "disable the disk cache for this run")
	discover := flag.Bool("discover", false, "enable entity-directory auto-discovery")
	flag.Parse()

	tickers := flag.Args()
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "usage: holdings [flags] TICKER [TICKER...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg := loadConfig(*configPath)
	if ua := os.Getenv("HOLDINGS_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if dir := os.Getenv("HOLDINGS_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}
	delay := time.Duration(cfg.RequestDelayMs) * time.Millisecond

	var discoverFn resolver.DiscoveryFunc
	if *discover || cfg.EnableDiscovery {
		discoverFn = discovery.NewClient("", cfg.UserAgent, delay).ResolverFunc()
	}

	res := resolver.New(discoverFn)
	if cfg.MappingFile != "" {
		if err := res.LoadMappings(cfg.MappingFile); err != nil {
			log.Printf("[WARNING] %v", err)
		}
	}

	cat := catalog.NewClient(
		catalog.WithUserAgent(cfg.UserAgent),
		catalog.WithDelay(delay),
	)
	tab := feeds.NewTabularClient(cfg.TabularURLTemplate, cfg.UserAgent, delay)
	comp := feeds.NewCompositionClient(cfg.CompositionURL, cfg.UserAgent, delay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ttl := time.Duration(cfg.CacheTTLDays) * 24 * time.Hour
	if *noCache {
		ttl = 0
	}
	pool, err := store.OpenMirror(ctx)
	if err != nil {
		log.Printf("[WARNING] cache mirror unavailable: %v", err)
	}
	if pool != nil {
		defer pool.Close()
	}
	cache := store.NewHoldingsCache(cfg.CacheDir, ttl, pool)

	extractor := extract.New(res, cat, tab, comp, cache)
	extractor.SetVerbose(*verbose)

	batch := extractor.ExtractMany(ctx, tickers, *maxFilings)

	out, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		log.Fatalf("cannot encode result: %v", err)
	}
	fmt.Println(string(out))

	if batch.Summary.WithHoldings == 0 {
		os.Exit(1)
	}
}
