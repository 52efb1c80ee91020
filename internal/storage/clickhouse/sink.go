package clickhouse

import (
	"context"
	"fmt"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/storage"
)

// Schema for the trade history table. ReplacingMergeTree collapses
// re-emitted signatures at merge time; readers should still dedupe
// with FINAL or argMax when exactness matters.
const Schema = `
CREATE TABLE IF NOT EXISTS trade_history (
    signature  String,
    token_mint String,
    action     LowCardinality(String),
    amount     Decimal64(9),
    price      Decimal64(9),
    trader     String,
    ts         DateTime64(3, 'UTC'),
    scraped_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(scraped_at)
ORDER BY (token_mint, ts, signature)
`

// Sink appends the snapshot's trade window to trade_history. Each
// signature is sent at most once per session, so the bounded window is
// not re-inserted whole every interval.
type Sink struct {
	conn *Conn

	// seen holds signatures already flushed this session. Persist runs
	// on a single goroutine, so no lock.
	seen map[string]struct{}
}

// NewSink creates the sink and applies the schema.
func NewSink(ctx context.Context, conn *Conn) (*Sink, error) {
	if err := conn.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Sink{conn: conn, seen: make(map[string]struct{})}, nil
}

func (s *Sink) Name() string {
	return "clickhouse"
}

// Persist batch-inserts trades not sent before.
func (s *Sink) Persist(ctx context.Context, snap *domain.Snapshot) error {
	var fresh []*domain.TradeRecord
	for i := range snap.Trades {
		tr := &snap.Trades[i]
		if _, ok := s.seen[tr.Signature]; ok {
			continue
		}
		fresh = append(fresh, tr)
	}
	if len(fresh) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO trade_history")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, tr := range fresh {
		err := batch.Append(
			tr.Signature,
			tr.Mint,
			string(tr.Action),
			tr.Amount,
			tr.Price,
			tr.User,
			tr.Timestamp,
			tr.ScrapedAt,
		)
		if err != nil {
			return fmt.Errorf("append trade %s: %w", tr.Signature, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	for _, tr := range fresh {
		s.seen[tr.Signature] = struct{}{}
	}
	return nil
}

func (s *Sink) Close() error {
	return s.conn.Close()
}

var _ storage.Sink = (*Sink)(nil)
