package domain

import "time"

// Snapshot is an immutable point-in-time copy of the record store: every
// known token, the bounded window of recent trades, and the mints flagged as
// new launches, in discovery order. A snapshot never mixes pre- and
// post-update state for a single record; consumers may iterate it freely
// while ingestion continues.
type Snapshot struct {
	Tokens   []TokenRecord `json:"tokens"`
	Trades   []TradeRecord `json:"transactions"`
	Launches []string      `json:"new_launch_mints"`
	TakenAt  time.Time     `json:"taken_at"`
}

// Token returns the snapshot token for a mint, if present.
func (s *Snapshot) Token(mint string) (TokenRecord, bool) {
	for i := range s.Tokens {
		if s.Tokens[i].Mint == mint {
			return s.Tokens[i], true
		}
	}
	return TokenRecord{}, false
}

// LaunchTokens resolves launch mints to their token records, preserving
// discovery order. Mints whose token has since disappeared are skipped.
func (s *Snapshot) LaunchTokens() []TokenRecord {
	byMint := make(map[string]int, len(s.Tokens))
	for i := range s.Tokens {
		byMint[s.Tokens[i].Mint] = i
	}

	out := make([]TokenRecord, 0, len(s.Launches))
	for _, mint := range s.Launches {
		if i, ok := byMint[mint]; ok {
			out = append(out, s.Tokens[i])
		}
	}
	return out
}
