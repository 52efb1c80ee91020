// Package store holds the in-memory authoritative state of the collector:
// the current set of known tokens, a bounded window of recent trades, and
// the ordered list of new-launch discoveries. One logical writer (the
// ingestion runner) mutates it; every other component reads it through
// Snapshot, which copies under the lock so readers never observe a record
// mixing pre- and post-update state.
package store

import (
	"sync"
	"time"

	"pumpwatch/internal/domain"
)

// DefaultTradeWindow bounds the recent-trade log when no capacity is given.
const DefaultTradeWindow = 1000

// RecordStore is the single shared mutable resource of the process.
type RecordStore struct {
	mu sync.RWMutex

	tokens     map[string]*domain.TokenRecord // keyed by mint
	tokenOrder []string                       // mints in first-seen order

	trades    []domain.TradeRecord // FIFO window, oldest first
	tradeIdx  map[string]int       // signature -> index into trades
	tradeCap  int
	launches  []string            // mints in launch-discovery order
	launchSet map[string]struct{} // dedup for launches

	now func() time.Time // injectable clock for deterministic tests
}

// New creates a record store with the given recent-trade capacity.
// Non-positive capacity falls back to DefaultTradeWindow.
func New(tradeCapacity int) *RecordStore {
	if tradeCapacity <= 0 {
		tradeCapacity = DefaultTradeWindow
	}
	return &RecordStore{
		tokens:    make(map[string]*domain.TokenRecord),
		tradeIdx:  make(map[string]int),
		tradeCap:  tradeCapacity,
		launchSet: make(map[string]struct{}),
		now:       time.Now,
	}
}

// WithClock sets a custom clock function for deterministic tests.
func (s *RecordStore) WithClock(now func() time.Time) *RecordStore {
	s.now = now
	return s
}

// UpsertToken inserts or merges a token by mint. Non-zero incoming fields
// overwrite; zero fields do not clobber existing values. LastSeenAt is
// always bumped to now. Returns true if the mint was previously unseen.
func (s *RecordStore) UpsertToken(t *domain.TokenRecord) bool {
	if t == nil || t.Mint == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.tokens[t.Mint]
	if !ok {
		rec := t.Clone()
		rec.FirstSeenAt = now
		rec.LastSeenAt = now
		s.tokens[t.Mint] = &rec
		s.tokenOrder = append(s.tokenOrder, t.Mint)
		return true
	}

	existing.Merge(t)
	existing.LastSeenAt = now
	return false
}

// AppendTrade upserts a trade into the bounded recent window. A known
// signature updates the stored record in place (upstream re-emissions are
// expected); a new signature is appended, evicting the oldest trade once
// the window is full. ScrapedAt is stamped with the current time unless
// the caller already set it. Returns true if the signature was previously
// unseen.
func (s *RecordStore) AppendTrade(t *domain.TradeRecord) bool {
	if t == nil || t.Signature == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *t
	if rec.ScrapedAt.IsZero() {
		rec.ScrapedAt = s.now()
	}

	if i, ok := s.tradeIdx[rec.Signature]; ok {
		s.trades[i] = rec
		return false
	}

	if len(s.trades) >= s.tradeCap {
		evicted := s.trades[0]
		delete(s.tradeIdx, evicted.Signature)
		s.trades = s.trades[1:]
		for sig, i := range s.tradeIdx {
			s.tradeIdx[sig] = i - 1
		}
	}

	s.trades = append(s.trades, rec)
	s.tradeIdx[rec.Signature] = len(s.trades) - 1
	return true
}

// RecordLaunch flags a mint as a new launch, once. Returns true the first
// time a mint is recorded.
func (s *RecordStore) RecordLaunch(mint string) bool {
	if mint == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.launchSet[mint]; ok {
		return false
	}
	s.launchSet[mint] = struct{}{}
	s.launches = append(s.launches, mint)
	return true
}

// Snapshot returns a consistent, independently-iterable copy of the store.
// The lock is held only for the duration of the copy.
func (s *RecordStore) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.Snapshot{
		Tokens:   make([]domain.TokenRecord, 0, len(s.tokenOrder)),
		Trades:   make([]domain.TradeRecord, len(s.trades)),
		Launches: make([]string, len(s.launches)),
		TakenAt:  s.now(),
	}
	for _, mint := range s.tokenOrder {
		snap.Tokens = append(snap.Tokens, s.tokens[mint].Clone())
	}
	copy(snap.Trades, s.trades)
	copy(snap.Launches, s.launches)
	return snap
}

// Counts returns the current token, trade and launch counts.
func (s *RecordStore) Counts() (tokens, trades, launches int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens), len(s.trades), len(s.launches)
}
