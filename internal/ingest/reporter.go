package ingest

import (
	"context"
	"log"
	"time"

	"pumpwatch/internal/observability"
	"pumpwatch/internal/store"
)

// DefaultReportInterval is how often the liveness report is logged.
const DefaultReportInterval = 30 * time.Second

// Reporter periodically logs a one-line session summary so an operator
// tailing the log can tell the collector is alive and making progress.
type Reporter struct {
	stats    *SessionStats
	store    *store.RecordStore
	logger   *log.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewReporter(stats *SessionStats, st *store.RecordStore, logger *log.Logger, interval time.Duration) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Reporter{stats: stats, store: st, logger: logger, interval: interval}
}

// WithMetrics also refreshes the store gauges on every report.
func (r *Reporter) WithMetrics(m *observability.Metrics) *Reporter {
	r.metrics = m
	return r
}

// Run logs until ctx is cancelled, then emits one final report.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Report()
			return ctx.Err()
		case <-ticker.C:
			r.Report()
		}
	}
}

// Report logs the current session summary.
func (r *Reporter) Report() {
	rep := r.stats.Report()
	tokens, trades, launches := r.store.Counts()
	if r.metrics != nil {
		r.metrics.TokensTracked.Set(float64(tokens))
		r.metrics.TradesWindow.Set(float64(trades))
	}
	r.logger.Printf(
		"session %s up %s | conn=%s | tokens=%d trades=%d launches=%d | polls=%d msgs=%d requests=%d req_errors=%d parse_errors=%d reconnects=%d",
		shortID(rep.SessionID), rep.Uptime.Truncate(time.Second), rep.Connection,
		tokens, trades, launches,
		rep.Polls, rep.MessagesReceived, rep.Requests, rep.RequestErrors, rep.ParseErrors, rep.ReconnectAttempts,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
