package ingest

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/feed"
	"pumpwatch/internal/observability"
	"pumpwatch/internal/store"
)

// Runner defaults.
const (
	DefaultPollInterval    = 20 * time.Second
	DefaultPageLimit       = 100
	DefaultNewLaunchWindow = 24 * time.Hour
	DefaultTradesPerPoll   = 10
)

// Runner moves records from the feed into the record store. It runs in
// one of two modes: with a Streamer it consumes the push channel, with
// only a Poller it polls the list endpoints on a fixed interval.
type Runner struct {
	store    *store.RecordStore
	poller   feed.Poller
	streamer feed.Streamer
	stats    *SessionStats
	errs     *ErrorLog
	logger   *log.Logger
	metrics  *observability.Metrics

	pollInterval    time.Duration
	pageLimit       int
	tradesPerPoll   int
	newLaunchWindow time.Duration
	minMarketCap    decimal.Decimal
	minVolume       decimal.Decimal

	now func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Store    *store.RecordStore
	Poller   feed.Poller
	Streamer feed.Streamer
	Stats    *SessionStats
	ErrorLog *ErrorLog
	Logger   *log.Logger
	Metrics  *observability.Metrics

	PollInterval  time.Duration
	PageLimit     int
	TradesPerPoll int
	// NewLaunchWindow is the max age for a token to count as a new launch.
	NewLaunchWindow time.Duration
	// MinMarketCap and MinVolume drop tokens below the thresholds.
	// Zero means no filter.
	MinMarketCap decimal.Decimal
	MinVolume    decimal.Decimal
}

// NewRunner creates an ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}
	pageLimit := opts.PageLimit
	if pageLimit == 0 {
		pageLimit = DefaultPageLimit
	}
	tradesPerPoll := opts.TradesPerPoll
	if tradesPerPoll == 0 {
		tradesPerPoll = DefaultTradesPerPoll
	}
	launchWindow := opts.NewLaunchWindow
	if launchWindow == 0 {
		launchWindow = DefaultNewLaunchWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	errs := opts.ErrorLog
	if errs == nil {
		errs = NewErrorLog(logger, 10*time.Second)
	}

	return &Runner{
		store:           opts.Store,
		poller:          opts.Poller,
		streamer:        opts.Streamer,
		stats:           opts.Stats,
		errs:            errs,
		logger:          logger,
		metrics:         opts.Metrics,
		pollInterval:    pollInterval,
		pageLimit:       pageLimit,
		tradesPerPoll:   tradesPerPoll,
		newLaunchWindow: launchWindow,
		minMarketCap:    opts.MinMarketCap,
		minVolume:       opts.MinVolume,
		now:             time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Run ingests until ctx is cancelled. It blocks.
func (r *Runner) Run(ctx context.Context) error {
	if r.streamer != nil {
		return r.runStream(ctx)
	}
	return r.runPoll(ctx)
}

func (r *Runner) runPoll(ctx context.Context) error {
	r.logger.Printf("starting poll ingestion (interval %s)", r.pollInterval)

	// First cycle immediately; the ticker covers the rest.
	r.PollOnce(ctx)

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("poll ingestion stopped")
			return ctx.Err()
		case <-ticker.C:
			r.PollOnce(ctx)
		}
	}
}

// PollOnce runs a single collection cycle against the list endpoints.
func (r *Runner) PollOnce(ctx context.Context) {
	r.stats.IncPolls()

	var fresh []domain.TokenRecord
	listFailures := 0
	for _, fetch := range []struct {
		name string
		fn   func(context.Context, int) ([]domain.TokenRecord, error)
	}{
		{"new", r.poller.ListNew},
		{"bonding", r.poller.ListBonding},
		{"graduated", r.poller.ListGraduated},
	} {
		r.stats.IncRequests()
		toks, err := fetch.fn(ctx, r.pageLimit)
		if err != nil {
			listFailures++
			r.stats.IncRequestErrors()
			if r.metrics != nil {
				r.metrics.IngestErrors.WithLabelValues(CatRequest).Inc()
			}
			r.errs.Errorf(CatRequest, "list %s tokens: %v", fetch.name, err)
			continue
		}
		for i := range toks {
			if r.ingestToken(&toks[i]) {
				fresh = append(fresh, toks[i])
			}
		}
	}

	// A cycle where every list call failed means the gateway is
	// unreachable; anything less still counts as connected.
	if listFailures == 3 {
		r.stats.SetConnState(domain.ConnReconnecting)
	} else {
		r.stats.SetConnState(domain.ConnConnected)
	}

	// Pull recent swaps for a bounded number of the tokens that just
	// appeared, newest first.
	for i := 0; i < len(fresh) && i < r.tradesPerPoll; i++ {
		if ctx.Err() != nil {
			return
		}
		r.stats.IncRequests()
		trades, err := r.poller.TokenTrades(ctx, fresh[i].Mint, r.pageLimit)
		if err != nil {
			r.stats.IncRequestErrors()
			if r.metrics != nil {
				r.metrics.IngestErrors.WithLabelValues(CatRequest).Inc()
			}
			r.errs.Errorf(CatRequest, "trades for %s: %v", fresh[i].Mint, err)
			continue
		}
		for j := range trades {
			r.ingestTrade(&trades[j])
		}
	}
}

func (r *Runner) runStream(ctx context.Context) error {
	r.logger.Println("starting stream ingestion")

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("stream ingestion stopped")
			return ctx.Err()
		case ev, ok := <-r.streamer.Events():
			if !ok {
				r.logger.Println("stream closed")
				return nil
			}
			r.stats.IncMessages()
			switch {
			case ev.Token != nil:
				r.ingestToken(ev.Token)
			case ev.Trade != nil:
				r.ingestTrade(ev.Trade)
			}
		}
	}
}

// ingestToken applies the threshold filters and stores the record.
// Returns true when the mint was not known before.
func (r *Runner) ingestToken(t *domain.TokenRecord) bool {
	if !r.minMarketCap.IsZero() && t.MarketCap.Cmp(r.minMarketCap) < 0 {
		return false
	}
	if !r.minVolume.IsZero() && t.Volume24h.Cmp(r.minVolume) < 0 {
		return false
	}

	isNew := r.store.UpsertToken(t)
	if isNew {
		r.stats.AddTokens(1)
		if r.metrics != nil {
			r.metrics.TokensIngested.Inc()
		}
		if r.isNewLaunch(t) && r.store.RecordLaunch(t.Mint) {
			r.stats.IncLaunches()
			if r.metrics != nil {
				r.metrics.LaunchesFlagged.Inc()
			}
			r.logger.Printf("new launch: %s (%s)", t.Symbol, t.Mint)
		}
	}
	return isNew
}

func (r *Runner) ingestTrade(t *domain.TradeRecord) {
	if r.store.AppendTrade(t) {
		r.stats.AddTrades(1)
		if r.metrics != nil {
			r.metrics.TradesIngested.Inc()
		}
	}
}

// isNewLaunch reports whether the token was created recently enough to
// count as a launch. Tokens without a creation timestamp never qualify.
func (r *Runner) isNewLaunch(t *domain.TokenRecord) bool {
	if t.CreatedAt == nil {
		return false
	}
	return r.now().Sub(*t.CreatedAt) <= r.newLaunchWindow
}
