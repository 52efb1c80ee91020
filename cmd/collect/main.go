// Command collect runs the continuous token collector: ingestion from
// the gateway, periodic persistence, the liveness report, and the
// dashboard server.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pumpwatch/internal/broadcast"
	"pumpwatch/internal/config"
	"pumpwatch/internal/domain"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/ingest"
	"pumpwatch/internal/observability"
	"pumpwatch/internal/persist"
	"pumpwatch/internal/server"
	"pumpwatch/internal/storage"
	chstore "pumpwatch/internal/storage/clickhouse"
	"pumpwatch/internal/storage/file"
	pgstore "pumpwatch/internal/storage/postgres"
	"pumpwatch/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	mode := flag.String("mode", "", "Source mode: poll or stream (overrides config)")
	listen := flag.String("listen", "", "HTTP listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "Directory for file sinks (overrides config)")
	flag.Parse()

	logger := log.New(os.Stdout, "[collect] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *mode != "" {
		cfg.Source.Mode = *mode
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *dataDir != "" {
		cfg.Persist.Dir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals with graceful timeout.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		sig := <-sigCh
		logger.Printf("received signal %v, shutting down...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("received second signal %v, forcing exit", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		close(done)
		logger.Fatalf("collector failed: %v", err)
	}
	close(done)
	logger.Println("collector stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	metrics := observability.NewMetrics("pumpwatch")
	recordStore := store.New(cfg.Collect.TradeWindow)
	stats := ingest.NewSessionStats()
	errLog := ingest.NewErrorLog(logger, 10*time.Second)

	parseErrHook := func(err error) {
		stats.IncParseErrors()
		metrics.IngestErrors.WithLabelValues(ingest.CatParse).Inc()
		errLog.Errorf(ingest.CatParse, "skipping malformed record: %v", err)
	}

	sinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Feed source.
	var (
		poller   feed.Poller
		streamer feed.Streamer
	)
	if cfg.Source.Mode == config.ModeStream {
		streamCfg := feed.DefaultStreamConfig(cfg.Source.WSEndpoint)
		streamCfg.ReconnectBase = cfg.Source.ReconnectBase.Std()
		streamCfg.ReconnectMax = cfg.Source.ReconnectMax.Std()
		streamer = feed.NewStream(streamCfg,
			feed.WithStreamLogger(log.New(os.Stdout, "[stream] ", log.LstdFlags)),
			feed.WithStateHook(func(st domain.ConnState) {
				stats.SetConnState(st)
				metrics.SetConnected(st == domain.ConnConnected)
			}),
			feed.WithReconnectHook(func(attempt int, wait time.Duration) {
				stats.IncReconnects()
				metrics.ReconnectAttempts.Inc()
			}),
			feed.WithStreamParseErrorHook(parseErrHook),
		)
	} else {
		poller = feed.NewClient(cfg.Source.BaseURL,
			feed.WithAPIKey(cfg.Source.APIKey),
			feed.WithMetrics(metrics),
			feed.WithRateLimit(rate.Limit(cfg.Source.RateLimit), int(cfg.Source.RateLimit)+1),
			feed.WithLogger(log.New(os.Stdout, "[feed] ", log.LstdFlags)),
			feed.WithParseErrorHook(parseErrHook),
		)
	}

	runner := ingest.NewRunner(ingest.RunnerOptions{
		Store:           recordStore,
		Poller:          poller,
		Streamer:        streamer,
		Stats:           stats,
		ErrorLog:        errLog,
		Logger:          logger,
		Metrics:         metrics,
		PollInterval:    cfg.Source.PollInterval.Std(),
		PageLimit:       cfg.Source.PageLimit,
		TradesPerPoll:   cfg.Collect.TradesPerPoll,
		NewLaunchWindow: time.Duration(cfg.Collect.NewLaunchHours) * time.Hour,
		MinMarketCap:    cfg.MinMarketCapDecimal(),
		MinVolume:       cfg.MinVolumeDecimal(),
	})

	persister := persist.New(persist.Options{
		Store:  recordStore,
		Sinks:  sinks,
		Stats:  stats.Report,
		Logger: log.New(os.Stdout, "[persist] ", log.LstdFlags),
		Errorf: func(format string, args ...any) {
			errLog.Errorf(ingest.CatPersist, format, args...)
		},
		Metrics:  metrics,
		Interval: cfg.Persist.Interval.Std(),
	})
	defer persister.Close()

	reporter := ingest.NewReporter(stats, recordStore, log.New(os.Stdout, "[stats] ", log.LstdFlags), cfg.Collect.StatsInterval.Std()).WithMetrics(metrics)

	hub := broadcast.NewHub(broadcast.Options{
		Store:      recordStore,
		Logger:     log.New(os.Stdout, "[ws] ", log.LstdFlags),
		Metrics:    metrics,
		Interval:   cfg.Server.BroadcastInterval.Std(),
		NewFlagTTL: cfg.Server.NewFlagTTL.Std(),
	})

	srv := server.New(server.Options{
		Listen: cfg.Server.Listen,
		Store:  recordStore,
		Hub:    hub,
		Stats:  stats.Report,
		Logger: log.New(os.Stdout, "[http] ", log.LstdFlags),
	})

	g, gctx := errgroup.WithContext(ctx)
	if streamer != nil {
		g.Go(func() error { return streamer.Run(gctx) })
	}
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return persister.Run(gctx) })
	g.Go(func() error { return reporter.Run(gctx) })
	g.Go(func() error { return srv.Run(gctx) })

	err = g.Wait()

	// Final numbers for the operator.
	reporter.Report()
	return err
}

// buildSinks assembles the persistence fan-out from the config: one
// file sink per format, plus the database sinks when their DSN is set.
func buildSinks(ctx context.Context, cfg *config.Config, logger *log.Logger) ([]storage.Sink, error) {
	var sinks []storage.Sink

	for _, format := range cfg.Persist.Formats {
		fs, err := file.NewSink(cfg.Persist.Dir, file.Format(format), logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fs)
	}

	if dsn := cfg.Persist.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		pg, err := pgstore.NewSink(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		sinks = append(sinks, pg)
		logger.Println("postgres sink attached")
	}

	if dsn := cfg.Persist.ClickHouseDSN; dsn != "" {
		conn, err := chstore.NewConn(ctx, dsn)
		if err != nil {
			return nil, err
		}
		ch, err := chstore.NewSink(ctx, conn)
		if err != nil {
			conn.Close()
			return nil, err
		}
		sinks = append(sinks, ch)
		logger.Println("clickhouse sink attached")
	}

	return sinks, nil
}
