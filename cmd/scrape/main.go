// Command scrape runs a single collection cycle: fetch the token
// lists once, save the results to disk, and print a summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"golang.org/x/time/rate"

	"pumpwatch/internal/config"
	"pumpwatch/internal/domain"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/ingest"
	"pumpwatch/internal/server"
	"pumpwatch/internal/storage/file"
	"pumpwatch/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	dataDir := flag.String("data-dir", "", "Directory for output files (overrides config)")
	format := flag.String("format", "", "Output format: json or csv (overrides config)")
	top := flag.Int("top", 5, "How many tokens to list in the summary")
	flag.Parse()

	logger := log.New(os.Stdout, "[scrape] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *dataDir != "" {
		cfg.Persist.Dir = *dataDir
	}
	if *format != "" {
		cfg.Persist.Formats = []string{*format}
	}
	cfg.Source.Mode = config.ModePoll // one-shot always polls
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	recordStore := store.New(cfg.Collect.TradeWindow)
	stats := ingest.NewSessionStats()

	client := feed.NewClient(cfg.Source.BaseURL,
		feed.WithAPIKey(cfg.Source.APIKey),
		feed.WithRateLimit(rate.Limit(cfg.Source.RateLimit), int(cfg.Source.RateLimit)+1),
		feed.WithLogger(logger),
		feed.WithParseErrorHook(func(error) { stats.IncParseErrors() }),
	)

	runner := ingest.NewRunner(ingest.RunnerOptions{
		Store:           recordStore,
		Poller:          client,
		Stats:           stats,
		Logger:          logger,
		PageLimit:       cfg.Source.PageLimit,
		TradesPerPoll:   cfg.Collect.TradesPerPoll,
		NewLaunchWindow: time.Duration(cfg.Collect.NewLaunchHours) * time.Hour,
		MinMarketCap:    cfg.MinMarketCapDecimal(),
		MinVolume:       cfg.MinVolumeDecimal(),
	})

	logger.Println("collecting...")
	runner.PollOnce(ctx)

	snap := recordStore.Snapshot()
	if len(snap.Tokens) == 0 {
		logger.Fatal("collected nothing; check the gateway URL and API key")
	}

	for _, f := range cfg.Persist.Formats {
		sink, err := file.NewSink(cfg.Persist.Dir, file.Format(f), logger)
		if err != nil {
			logger.Fatalf("create %s sink: %v", f, err)
		}
		if err := sink.Persist(ctx, snap); err != nil {
			logger.Fatalf("save %s: %v", f, err)
		}
		if err := sink.PersistStats(ctx, stats.Report()); err != nil {
			logger.Fatalf("save stats: %v", err)
		}
	}
	logger.Printf("saved %d tokens and %d trades to %s", len(snap.Tokens), len(snap.Trades), cfg.Persist.Dir)

	printSummary(snap, *top)
}

func printSummary(snap *domain.Snapshot, top int) {
	sum := server.Summarize(snap)

	fmt.Println()
	fmt.Printf("tokens:       %d\n", sum.TotalTokens)
	fmt.Printf("transactions: %d (%d buys / %d sells)\n", sum.TotalTransactions, sum.BuyCount, sum.SellCount)
	fmt.Printf("buy volume:   %s\n", sum.BuyVolume.String())
	fmt.Printf("sell volume:  %s\n", sum.SellVolume.String())
	fmt.Printf("new launches: %d\n", sum.NewLaunches)

	tokens := make([]domain.TokenRecord, len(snap.Tokens))
	copy(tokens, snap.Tokens)
	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].MarketCap.Cmp(tokens[j].MarketCap) > 0
	})
	if top > len(tokens) {
		top = len(tokens)
	}

	fmt.Printf("\ntop %d by market cap:\n", top)
	for i := 0; i < top; i++ {
		t := tokens[i]
		name := t.Name
		if name == "" {
			name = t.Mint
		}
		fmt.Printf("  %2d. %-24s %-8s mcap=%-14s vol24h=%s\n",
			i+1, truncate(name, 24), t.Symbol, t.MarketCap.String(), t.Volume24h.String())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
