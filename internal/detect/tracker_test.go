package detect

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pumpwatch/internal/domain"
)

func tok(mint, price string) domain.TokenRecord {
	return domain.TokenRecord{Mint: mint, Price: decimal.RequireFromString(price)}
}

func TestTracker_NewReportedExactlyOnce(t *testing.T) {
	tr := NewTracker(0)

	d1 := tr.Diff([]domain.TokenRecord{tok("mintA", "1"), tok("mintB", "2")})
	if len(d1.NewMints) != 2 {
		t.Fatalf("expected 2 new mints, got %v", d1.NewMints)
	}

	d2 := tr.Diff([]domain.TokenRecord{tok("mintA", "1"), tok("mintB", "2"), tok("mintC", "3")})
	if len(d2.NewMints) != 1 || d2.NewMints[0] != "mintC" {
		t.Errorf("expected only mintC new, got %v", d2.NewMints)
	}

	d3 := tr.Diff([]domain.TokenRecord{tok("mintC", "3")})
	if len(d3.NewMints) != 0 {
		t.Errorf("mintC reported new again: %v", d3.NewMints)
	}
}

func TestTracker_NewFlagExpires(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(30 * time.Second).WithClock(func() time.Time { return at })

	d := tr.Diff([]domain.TokenRecord{tok("mintA", "1")})
	if !d.Tokens[0].IsNew {
		t.Fatal("token should be flagged new on first sight")
	}

	at = at.Add(29 * time.Second)
	d = tr.Diff([]domain.TokenRecord{tok("mintA", "1")})
	if !d.Tokens[0].IsNew {
		t.Error("flag dropped before TTL")
	}

	at = at.Add(2 * time.Second)
	d = tr.Diff([]domain.TokenRecord{tok("mintA", "1")})
	if d.Tokens[0].IsNew {
		t.Error("flag still up after TTL")
	}
}

func TestTracker_PriceDirection(t *testing.T) {
	tr := NewTracker(0)

	d := tr.Diff([]domain.TokenRecord{tok("mintA", "1.00")})
	if d.Tokens[0].PriceChange != PriceFlat {
		t.Errorf("first sight should have no direction, got %q", d.Tokens[0].PriceChange)
	}

	d = tr.Diff([]domain.TokenRecord{tok("mintA", "1.25")})
	if d.Tokens[0].PriceChange != PriceUp {
		t.Errorf("expected %q, got %q", PriceUp, d.Tokens[0].PriceChange)
	}

	d = tr.Diff([]domain.TokenRecord{tok("mintA", "0.75")})
	if d.Tokens[0].PriceChange != PriceDown {
		t.Errorf("expected %q, got %q", PriceDown, d.Tokens[0].PriceChange)
	}

	// Same value in a different representation is not a change.
	d = tr.Diff([]domain.TokenRecord{tok("mintA", "0.750")})
	if d.Tokens[0].PriceChange != PriceFlat {
		t.Errorf("equal price reported as change: %q", d.Tokens[0].PriceChange)
	}
}

func TestTracker_ZeroPriceDoesNotClobberLast(t *testing.T) {
	tr := NewTracker(0)

	tr.Diff([]domain.TokenRecord{tok("mintA", "2")})
	tr.Diff([]domain.TokenRecord{{Mint: "mintA"}}) // price missing this cycle

	d := tr.Diff([]domain.TokenRecord{tok("mintA", "3")})
	if d.Tokens[0].PriceChange != PriceUp {
		t.Errorf("expected comparison against last real price, got %q", d.Tokens[0].PriceChange)
	}
}

func TestTracker_IndependentTrackersDiverge(t *testing.T) {
	a := NewTracker(0)
	b := NewTracker(0)

	a.Diff([]domain.TokenRecord{tok("mintA", "1")})

	d := b.Diff([]domain.TokenRecord{tok("mintA", "1")})
	if len(d.NewMints) != 1 {
		t.Error("second tracker should see the mint as new")
	}
}
