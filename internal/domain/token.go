package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenRecord represents a pump.fun token as currently known to the collector.
// Identity is the mint address; there is at most one live record per mint.
// Records arriving without a mint address are rejected at parse time rather
// than keyed by symbol or name, since distinct tokens routinely share both.
type TokenRecord struct {
	Mint        string          `json:"mint_address"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	MarketCap   decimal.Decimal `json:"market_cap"`
	Volume24h   decimal.Decimal `json:"volume_24h"`
	CreatedAt   *time.Time      `json:"created_timestamp,omitempty"` // on-chain creation (nullable)
	FirstSeenAt time.Time       `json:"first_seen_at"`
	LastSeenAt  time.Time       `json:"scraped_at"`
	Description string          `json:"description,omitempty"`
	ImageURI    string          `json:"image_uri,omitempty"`
	Twitter     string          `json:"twitter,omitempty"`
	Telegram    string          `json:"telegram,omitempty"`
	Website     string          `json:"website,omitempty"`
	Graduated   bool            `json:"graduated"` // completed the bonding curve
}

// Merge applies incoming onto t following the merge policy: non-zero
// incoming fields overwrite, zero/absent fields do not clobber existing
// values. Identity, CreatedAt and FirstSeenAt are never overwritten once set.
func (t *TokenRecord) Merge(incoming *TokenRecord) {
	if incoming.Name != "" {
		t.Name = incoming.Name
	}
	if incoming.Symbol != "" {
		t.Symbol = incoming.Symbol
	}
	if !incoming.Price.IsZero() {
		t.Price = incoming.Price
	}
	if !incoming.MarketCap.IsZero() {
		t.MarketCap = incoming.MarketCap
	}
	if !incoming.Volume24h.IsZero() {
		t.Volume24h = incoming.Volume24h
	}
	if t.CreatedAt == nil && incoming.CreatedAt != nil {
		created := *incoming.CreatedAt
		t.CreatedAt = &created
	}
	if incoming.Description != "" {
		t.Description = incoming.Description
	}
	if incoming.ImageURI != "" {
		t.ImageURI = incoming.ImageURI
	}
	if incoming.Twitter != "" {
		t.Twitter = incoming.Twitter
	}
	if incoming.Telegram != "" {
		t.Telegram = incoming.Telegram
	}
	if incoming.Website != "" {
		t.Website = incoming.Website
	}
	if incoming.Graduated {
		t.Graduated = true
	}
}

// Clone returns a deep copy safe to hand out across goroutines.
func (t *TokenRecord) Clone() TokenRecord {
	c := *t
	if t.CreatedAt != nil {
		created := *t.CreatedAt
		c.CreatedAt = &created
	}
	return c
}
