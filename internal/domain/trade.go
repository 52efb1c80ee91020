package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the side of a trade.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Valid reports whether a is one of the closed set of trade actions.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeRecord represents a single swap against a pump.fun token.
// Identity is the transaction signature. The upstream may re-emit a
// signature; re-ingestion is an idempotent upsert rather than an error.
// Mint references a TokenRecord but is not enforced; orphan trades are kept.
type TradeRecord struct {
	Signature string          `json:"signature"`
	Mint      string          `json:"token_mint"`
	Action    Action          `json:"action"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	User      string          `json:"user"`
	Timestamp time.Time       `json:"timestamp"`  // when the trade happened
	ScrapedAt time.Time       `json:"scraped_at"` // when we ingested it
}
