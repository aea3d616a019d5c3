// Command cachetool manages the holdings disk cache: statistics, clearing,
// and expired-entry cleanup.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"

	"etf_holdings/pkg/core/store"
)

var (
	cacheDir = flag.String("cache-dir", ".cache/etf_holdings", "cache directory")
	ttlDays  = flag.Int("cache-ttl-days", 3, "cache TTL in days")
)

func openCache() *store.HoldingsCache {
	return store.NewHoldingsCache(*cacheDir, time.Duration(*ttlDays)*24*time.Hour, nil)
}

type statsCmd struct{}

func (*statsCmd) Name() string             { return "stats" }
func (*statsCmd) Synopsis() string         { return "print cache statistics" }
func (*statsCmd) Usage() string            { return "stats\n" }
func (*statsCmd) SetFlags(f *flag.FlagSet) {}

func (*statsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	stats := openCache().Stats()
	if !stats.Enabled {
		fmt.Println("Cache is disabled.")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Cache directory: %s\n", stats.Dir)
	fmt.Printf("Cache TTL: %.0f days\n", stats.TTLDays)
	fmt.Printf("Cached tickers: %d\n", stats.TotalEntries)
	fmt.Printf("Cache files: %d\n", stats.TotalFiles)
	fmt.Printf("Cache size: %.2f MB\n", float64(stats.TotalSizeBytes)/(1024*1024))
	for key, entry := range stats.Entries {
		fmt.Printf("  %s: %d holdings (cached %s, max_filings %d)\n",
			key, entry.Holdings, entry.CachedAt.Format("2006-01-02"), entry.MaxFilings)
	}
	return subcommands.ExitSuccess
}

type clearCmd struct{}

func (*clearCmd) Name() string             { return "clear" }
func (*clearCmd) Synopsis() string         { return "clear the cache, or one ticker's entries" }
func (*clearCmd) Usage() string            { return "clear [TICKER]\n" }
func (*clearCmd) SetFlags(f *flag.FlagSet) {}

func (*clearCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	ticker := ""
	if f.NArg() > 0 {
		ticker = f.Arg(0)
	}
	if err := openCache().Clear(ticker); err != nil {
		fmt.Fprintf(os.Stderr, "clear failed: %v\n", err)
		return subcommands.ExitFailure
	}
	if ticker == "" {
		fmt.Println("Cleared all cache entries.")
	} else {
		fmt.Printf("Cleared cache entries for %s.\n", ticker)
	}
	return subcommands.ExitSuccess
}

type cleanupCmd struct{}

func (*cleanupCmd) Name() string             { return "cleanup" }
func (*cleanupCmd) Synopsis() string         { return "remove expired cache entries" }
func (*cleanupCmd) Usage() string            { return "cleanup\n" }
func (*cleanupCmd) SetFlags(f *flag.FlagSet) {}

func (*cleanupCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	removed := openCache().SweepExpired()
	if removed == 0 {
		fmt.Println("No expired entries found.")
	} else {
		fmt.Printf("Removed %d expired entries.\n", removed)
	}
	return subcommands.ExitSuccess
}

type infoCmd struct{}

func (*infoCmd) Name() string             { return "info" }
func (*infoCmd) Synopsis() string         { return "show cache location and TTL" }
func (*infoCmd) Usage() string            { return "info\n" }
func (*infoCmd) SetFlags(f *flag.FlagSet) {}

func (*infoCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	stats := openCache().Stats()
	fmt.Printf("Cache directory: %s\n", stats.Dir)
	fmt.Printf("Cache TTL: %.0f days\n", stats.TTLDays)
	return subcommands.ExitSuccess
}

func main() {
	godotenv.Load()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(&statsCmd{}, "")
	commander.Register(&clearCmd{}, "")
	commander.Register(&cleanupCmd{}, "")
	commander.Register(&infoCmd{}, "")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
