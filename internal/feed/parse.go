package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/storage"
)

// Gateway payloads are loosely shaped: field names vary between the
// list endpoints and the stream, numbers arrive as JSON numbers or as
// strings, and timestamps show up in seconds, milliseconds, or RFC3339.
// The parsers below normalize all of that. Fallback key order is fixed
// so the same payload always parses the same way.

var (
	mintKeys      = []string{"mint", "mint_address", "address", "token_address", "ca"}
	nameKeys      = []string{"name", "token_name"}
	symbolKeys    = []string{"symbol", "ticker"}
	priceKeys     = []string{"price", "price_usd", "priceUsd", "usd_price"}
	mcapKeys      = []string{"market_cap", "usd_market_cap", "marketCap", "mcap"}
	volumeKeys    = []string{"volume_24h", "volume", "volume24h"}
	createdKeys   = []string{"created_timestamp", "created_at", "creation_time"}
	signatureKeys = []string{"signature", "tx_hash", "txHash", "tx"}
	amountKeys    = []string{"sol_amount", "amount", "token_amount"}
	userKeys      = []string{"user", "trader", "wallet", "account"}
	tradeTimeKeys = []string{"timestamp", "block_time", "time"}
)

// ParseToken builds a TokenRecord from a raw gateway object. Records
// without a mint address are rejected: the mint is the only stable
// identity a token has, and a record we cannot key is a record we
// cannot deduplicate.
func ParseToken(raw []byte) (*domain.TokenRecord, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	return tokenFromMap(m)
}

func tokenFromMap(m map[string]any) (*domain.TokenRecord, error) {
	mint := pickString(m, mintKeys)
	if mint == "" {
		return nil, fmt.Errorf("token record: %w: no mint address", storage.ErrInvalidInput)
	}

	t := &domain.TokenRecord{
		Mint:        mint,
		Name:        pickString(m, nameKeys),
		Symbol:      pickString(m, symbolKeys),
		Price:       pickDecimal(m, priceKeys),
		MarketCap:   pickDecimal(m, mcapKeys),
		Volume24h:   pickDecimal(m, volumeKeys),
		Description: pickString(m, []string{"description"}),
		ImageURI:    pickString(m, []string{"image_uri", "image"}),
		Twitter:     pickString(m, []string{"twitter"}),
		Telegram:    pickString(m, []string{"telegram"}),
		Website:     pickString(m, []string{"website"}),
		Graduated:   pickBool(m, []string{"complete", "graduated", "is_currently_live"}),
	}
	if ts, ok := pickTime(m, createdKeys); ok {
		t.CreatedAt = &ts
	}
	return t, nil
}

// ParseTrade builds a TradeRecord from a raw gateway object. The
// transaction signature is the record's identity and is required.
func ParseTrade(raw []byte) (*domain.TradeRecord, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	return tradeFromMap(m)
}

func tradeFromMap(m map[string]any) (*domain.TradeRecord, error) {
	sig := pickString(m, signatureKeys)
	if sig == "" {
		return nil, fmt.Errorf("trade record: %w: no signature", storage.ErrInvalidInput)
	}
	mint := pickString(m, mintKeys)
	if mint == "" {
		return nil, fmt.Errorf("trade record: %w: no mint address", storage.ErrInvalidInput)
	}

	tr := &domain.TradeRecord{
		Signature: sig,
		Mint:      mint,
		Action:    tradeAction(m),
		Amount:    pickDecimal(m, amountKeys),
		Price:     pickDecimal(m, priceKeys),
		User:      pickString(m, userKeys),
	}
	if !tr.Action.Valid() {
		return nil, fmt.Errorf("trade record: %w: unknown action", storage.ErrInvalidInput)
	}
	if ts, ok := pickTime(m, tradeTimeKeys); ok {
		tr.Timestamp = ts
	}
	return tr, nil
}

func tradeAction(m map[string]any) domain.Action {
	if v, ok := m["is_buy"]; ok {
		if b, ok := v.(bool); ok {
			if b {
				return domain.ActionBuy
			}
			return domain.ActionSell
		}
	}
	for _, k := range []string{"txType", "type", "side", "action"} {
		switch strings.ToLower(pickString(m, []string{k})) {
		case "buy":
			return domain.ActionBuy
		case "sell":
			return domain.ActionSell
		}
	}
	return domain.Action("")
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode gateway payload: %w", err)
	}
	return m, nil
}

func pickString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// pickDecimal accepts JSON numbers and numeric strings. Anything else,
// including garbage strings, yields zero rather than an error: a
// missing metric should not sink the whole record.
func pickDecimal(m map[string]any, keys []string) decimal.Decimal {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			if d, err := decimal.NewFromString(n.String()); err == nil {
				return d
			}
		case string:
			if d, err := decimal.NewFromString(strings.TrimSpace(n)); err == nil {
				return d
			}
		}
	}
	return decimal.Zero
}

func pickBool(m map[string]any, keys []string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

// pickTime handles unix seconds, unix milliseconds, and RFC3339.
// Values above the millisecond cutoff are treated as milliseconds;
// the boundary sits in 1973 for seconds and 2286 for milliseconds, so
// real token timestamps are never ambiguous.
func pickTime(m map[string]any, keys []string) (time.Time, bool) {
	const msCutoff = 1e11
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				continue
			}
			if f <= 0 {
				continue
			}
			if f >= msCutoff {
				return time.UnixMilli(int64(f)).UTC(), true
			}
			return time.Unix(int64(f), 0).UTC(), true
		case string:
			if ts, err := time.Parse(time.RFC3339, n); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}
