// Package detect computes per-subscriber deltas between successive
// dataset snapshots: which tokens are newly seen, and which direction
// each token's price moved since the last emission.
package detect

import (
	"time"

	"github.com/shopspring/decimal"

	"pumpwatch/internal/domain"
)

// Price movement relative to the previously emitted value.
const (
	PriceUp   = "increased"
	PriceDown = "decreased"
	PriceFlat = ""
)

// DefaultNewFlagTTL is how long a token keeps its "new" highlight
// after a subscriber first observes it.
const DefaultNewFlagTTL = 30 * time.Second

// TokenDelta is a token record annotated with per-subscriber change state.
type TokenDelta struct {
	domain.TokenRecord
	IsNew       bool   `json:"is_new"`
	PriceChange string `json:"price_change,omitempty"`
}

// Delta is the result of diffing one snapshot against a tracker's history.
type Delta struct {
	Tokens   []TokenDelta
	NewMints []string
}

// Tracker holds one subscriber's view of the dataset. Each subscriber
// gets its own Tracker so that "new" means new to that subscriber, not
// new to the process. A Tracker is not safe for concurrent use; each
// subscriber goroutine owns exactly one.
type Tracker struct {
	firstSeen map[string]time.Time
	lastPrice map[string]decimal.Decimal
	flagTTL   time.Duration
	now       func() time.Time
}

func NewTracker(flagTTL time.Duration) *Tracker {
	if flagTTL <= 0 {
		flagTTL = DefaultNewFlagTTL
	}
	return &Tracker{
		firstSeen: make(map[string]time.Time),
		lastPrice: make(map[string]decimal.Decimal),
		flagTTL:   flagTTL,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Test hook.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Diff annotates every token in the snapshot and records the mints that
// appeared for the first time. A mint is reported in NewMints exactly
// once across the lifetime of the tracker; the IsNew flag stays up for
// flagTTL after first sight and then drops.
func (t *Tracker) Diff(tokens []domain.TokenRecord) Delta {
	now := t.now()
	out := Delta{Tokens: make([]TokenDelta, 0, len(tokens))}

	for _, tok := range tokens {
		d := TokenDelta{TokenRecord: tok}

		seenAt, known := t.firstSeen[tok.Mint]
		if !known {
			t.firstSeen[tok.Mint] = now
			seenAt = now
			out.NewMints = append(out.NewMints, tok.Mint)
		}
		d.IsNew = now.Sub(seenAt) < t.flagTTL

		if prev, ok := t.lastPrice[tok.Mint]; ok && !tok.Price.IsZero() {
			switch tok.Price.Cmp(prev) {
			case 1:
				d.PriceChange = PriceUp
			case -1:
				d.PriceChange = PriceDown
			}
		}
		if !tok.Price.IsZero() {
			t.lastPrice[tok.Mint] = tok.Price
		}

		out.Tokens = append(out.Tokens, d)
	}
	return out
}
