// Package file persists snapshots to timestamped JSON or CSV files on
// local disk, one file per category per save, plus a session stats
// file that is overwritten in place.
package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/storage"
)

// Format selects the on-disk encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Subdirectories under the base dir.
const (
	tokensDir   = "tokens"
	tradesDir   = "transactions"
	launchesDir = "launches"
)

const stampLayout = "20060102_150405"

// Sink writes snapshots under a base directory. Files are written to a
// temp path and renamed so a crash mid-write never leaves a truncated
// file behind.
type Sink struct {
	dir    string
	format Format
	logger *log.Logger
	now    func() time.Time
}

// NewSink creates the base directory tree and returns the sink.
func NewSink(dir string, format Format, logger *log.Logger) (*Sink, error) {
	if format != FormatJSON && format != FormatCSV {
		return nil, fmt.Errorf("file sink: %w: unknown format %q", storage.ErrInvalidInput, format)
	}
	if logger == nil {
		logger = log.Default()
	}
	for _, sub := range []string{tokensDir, tradesDir, launchesDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}
	return &Sink{dir: dir, format: format, logger: logger, now: time.Now}, nil
}

// WithClock replaces the time source. Test hook.
func (s *Sink) WithClock(now func() time.Time) *Sink {
	s.now = now
	return s
}

func (s *Sink) Name() string {
	return "file-" + string(s.format)
}

// Persist writes the snapshot's tokens, trades, and launches, each to
// its own timestamped file. Empty categories are skipped.
func (s *Sink) Persist(ctx context.Context, snap *domain.Snapshot) error {
	stamp := s.now().UTC().Format(stampLayout)

	if len(snap.Tokens) > 0 {
		path := filepath.Join(s.dir, tokensDir, fmt.Sprintf("tokens_%s.%s", stamp, s.format))
		if err := s.write(path, snap.Tokens, tokenRows(snap.Tokens)); err != nil {
			return fmt.Errorf("write tokens: %w", err)
		}
	}
	if len(snap.Trades) > 0 {
		path := filepath.Join(s.dir, tradesDir, fmt.Sprintf("transactions_%s.%s", stamp, s.format))
		if err := s.write(path, snap.Trades, tradeRows(snap.Trades)); err != nil {
			return fmt.Errorf("write transactions: %w", err)
		}
	}
	if launches := snap.LaunchTokens(); len(launches) > 0 {
		path := filepath.Join(s.dir, launchesDir, fmt.Sprintf("launches_%s.%s", stamp, s.format))
		if err := s.write(path, launches, tokenRows(launches)); err != nil {
			return fmt.Errorf("write launches: %w", err)
		}
	}
	return nil
}

// PersistStats overwrites session_stats.json in the base directory.
// Stats are always JSON regardless of the configured format.
func (s *Sink) PersistStats(ctx context.Context, rep domain.StatsReport) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(s.dir, "session_stats.json"), data)
}

func (s *Sink) Close() error {
	return nil
}

// write encodes v as JSON or rows as CSV, depending on the format.
func (s *Sink) write(path string, v any, rows [][]string) error {
	if s.format == FormatJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		return atomicWrite(path, data)
	}
	return atomicWriteCSV(path, rows)
}

func tokenRows(tokens []domain.TokenRecord) [][]string {
	rows := [][]string{{
		"mint_address", "name", "symbol", "price", "market_cap", "volume_24h",
		"created_timestamp", "first_seen_at", "scraped_at", "graduated",
	}}
	for _, t := range tokens {
		created := ""
		if t.CreatedAt != nil {
			created = t.CreatedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, []string{
			t.Mint, t.Name, t.Symbol,
			t.Price.String(), t.MarketCap.String(), t.Volume24h.String(),
			created,
			t.FirstSeenAt.UTC().Format(time.RFC3339),
			t.LastSeenAt.UTC().Format(time.RFC3339),
			fmt.Sprintf("%t", t.Graduated),
		})
	}
	return rows
}

func tradeRows(trades []domain.TradeRecord) [][]string {
	rows := [][]string{{
		"signature", "token_mint", "action", "amount", "price", "user", "timestamp", "scraped_at",
	}}
	for _, t := range trades {
		rows = append(rows, []string{
			t.Signature, t.Mint, string(t.Action),
			t.Amount.String(), t.Price.String(), t.User,
			t.Timestamp.UTC().Format(time.RFC3339),
			t.ScrapedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func atomicWriteCSV(path string, rows [][]string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

var (
	_ storage.Sink      = (*Sink)(nil)
	_ storage.StatsSink = (*Sink)(nil)
)
