package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/storage"
)

// Schema is the DDL for the collector tables. Applied by EnsureSchema;
// also usable standalone for migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS tokens (
    mint_address      TEXT PRIMARY KEY,
    name              TEXT NOT NULL DEFAULT '',
    symbol            TEXT NOT NULL DEFAULT '',
    price             NUMERIC NOT NULL DEFAULT 0,
    market_cap        NUMERIC NOT NULL DEFAULT 0,
    volume_24h        NUMERIC NOT NULL DEFAULT 0,
    created_timestamp TIMESTAMPTZ,
    first_seen_at     TIMESTAMPTZ NOT NULL,
    scraped_at        TIMESTAMPTZ NOT NULL,
    graduated         BOOLEAN NOT NULL DEFAULT FALSE,
    is_launch         BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS trades (
    signature  TEXT PRIMARY KEY,
    token_mint TEXT NOT NULL,
    action     TEXT NOT NULL,
    amount     NUMERIC NOT NULL DEFAULT 0,
    price      NUMERIC NOT NULL DEFAULT 0,
    trader     TEXT NOT NULL DEFAULT '',
    ts         TIMESTAMPTZ,
    scraped_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_token_mint ON trades (token_mint);

CREATE TABLE IF NOT EXISTS sessions (
    session_id  TEXT PRIMARY KEY,
    started_at  TIMESTAMPTZ NOT NULL,
    stats       JSONB NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL
);
`

// Sink persists snapshots into Postgres.
type Sink struct {
	pool *Pool
}

// NewSink creates the sink and applies the schema.
func NewSink(ctx context.Context, pool *Pool) (*Sink, error) {
	s := &Sink{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Sink) Name() string {
	return "postgres"
}

// Persist upserts every token and trade in the snapshot inside one
// transaction, batched to keep round trips down.
func (s *Sink) Persist(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	launches := make(map[string]struct{}, len(snap.Launches))
	for _, mint := range snap.Launches {
		launches[mint] = struct{}{}
	}

	batch := &pgx.Batch{}
	for i := range snap.Tokens {
		t := &snap.Tokens[i]
		_, isLaunch := launches[t.Mint]
		batch.Queue(`
			INSERT INTO tokens (mint_address, name, symbol, price, market_cap, volume_24h,
			                    created_timestamp, first_seen_at, scraped_at, graduated, is_launch)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (mint_address) DO UPDATE SET
				name = EXCLUDED.name,
				symbol = EXCLUDED.symbol,
				price = EXCLUDED.price,
				market_cap = EXCLUDED.market_cap,
				volume_24h = EXCLUDED.volume_24h,
				scraped_at = EXCLUDED.scraped_at,
				graduated = EXCLUDED.graduated,
				is_launch = tokens.is_launch OR EXCLUDED.is_launch`,
			t.Mint, t.Name, t.Symbol, t.Price.String(), t.MarketCap.String(), t.Volume24h.String(),
			t.CreatedAt, t.FirstSeenAt, t.LastSeenAt, t.Graduated, isLaunch,
		)
	}
	for i := range snap.Trades {
		tr := &snap.Trades[i]
		batch.Queue(`
			INSERT INTO trades (signature, token_mint, action, amount, price, trader, ts, scraped_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (signature) DO UPDATE SET
				amount = EXCLUDED.amount,
				price = EXCLUDED.price,
				scraped_at = EXCLUDED.scraped_at`,
			tr.Signature, tr.Mint, string(tr.Action), tr.Amount.String(), tr.Price.String(), tr.User, tr.Timestamp, tr.ScrapedAt,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("flush batch: %w", err)
	}
	return tx.Commit(ctx)
}

// PersistStats stores the session counters as JSONB, one row per
// session. Insert first; the duplicate key path updates in place.
func (s *Sink) PersistStats(ctx context.Context, rep domain.StatsReport) error {
	stats, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode session stats: %w", err)
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, started_at, stats, updated_at)
		VALUES ($1, $2, $3, $4)`,
		rep.SessionID, rep.StartedAt, stats, now,
	)
	if isDuplicateKeyError(err) {
		_, err = s.pool.Exec(ctx, `
			UPDATE sessions SET stats = $2, updated_at = $3 WHERE session_id = $1`,
			rep.SessionID, stats, now,
		)
	}
	if err != nil {
		return fmt.Errorf("persist session stats: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

var (
	_ storage.Sink      = (*Sink)(nil)
	_ storage.StatsSink = (*Sink)(nil)
)
