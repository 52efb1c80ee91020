// Package persist flushes the in-memory dataset to the configured
// sinks on a fixed interval, and once more at shutdown.
package persist

import (
	"context"
	"log"
	"time"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/observability"
	"pumpwatch/internal/storage"
	"pumpwatch/internal/store"
)

// DefaultInterval is the default time between persist runs.
const DefaultInterval = 20 * time.Second

// Persister snapshots the store and fans the snapshot out to every
// sink. A failing sink is logged and skipped; it never blocks the
// others and never stops the loop.
type Persister struct {
	store    *store.RecordStore
	sinks    []storage.Sink
	stats    func() domain.StatsReport
	logger   *log.Logger
	errorf   func(format string, args ...any)
	metrics  *observability.Metrics
	interval time.Duration
	now      func() time.Time
}

// Options contains configuration for creating a Persister.
type Options struct {
	Store *store.RecordStore
	Sinks []storage.Sink
	// Stats, when set, is also written to sinks implementing StatsSink.
	Stats  func() domain.StatsReport
	Logger *log.Logger
	// Errorf, when set, replaces the logger for sink failures so a
	// permanently-down sink does not flood the log one line per tick.
	Errorf   func(format string, args ...any)
	Metrics  *observability.Metrics
	Interval time.Duration
}

func New(opts Options) *Persister {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	errorf := opts.Errorf
	if errorf == nil {
		errorf = logger.Printf
	}
	return &Persister{
		store:    opts.Store,
		sinks:    opts.Sinks,
		stats:    opts.Stats,
		logger:   logger,
		errorf:   errorf,
		metrics:  opts.Metrics,
		interval: interval,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (p *Persister) WithClock(now func() time.Time) *Persister {
	p.now = now
	return p
}

// Run persists on the interval until ctx is cancelled, then performs a
// final flush so records collected since the last tick are not lost.
func (p *Persister) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Flush(context.Background())
			return ctx.Err()
		case <-ticker.C:
			p.Flush(ctx)
		}
	}
}

// Flush snapshots the store once and writes the snapshot to every sink.
func (p *Persister) Flush(ctx context.Context) {
	snap := p.store.Snapshot()
	if len(snap.Tokens) == 0 && len(snap.Trades) == 0 {
		return
	}

	var rep *domain.StatsReport
	if p.stats != nil {
		r := p.stats()
		rep = &r
	}

	for _, sink := range p.sinks {
		start := p.now()
		err := sink.Persist(ctx, snap)
		p.metrics.ObservePersist(sink.Name(), p.now().Sub(start), err)
		if err != nil {
			p.errorf("persist to %s failed: %v", sink.Name(), err)
			continue
		}

		if rep != nil {
			if ss, ok := sink.(storage.StatsSink); ok {
				if err := ss.PersistStats(ctx, *rep); err != nil {
					p.errorf("persist stats to %s failed: %v", sink.Name(), err)
				}
			}
		}
	}
}

// Close closes every sink, reporting the first error.
func (p *Persister) Close() error {
	var first error
	for _, sink := range p.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
