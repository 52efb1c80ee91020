// Package server exposes the collector's HTTP surface: the dashboard
// WebSocket, a JSON dataset endpoint, health, and metrics.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"pumpwatch/internal/broadcast"
	"pumpwatch/internal/domain"
	"pumpwatch/internal/observability"
	"pumpwatch/internal/store"
)

// Server wires the HTTP handlers to the collector internals.
type Server struct {
	store  *store.RecordStore
	hub    *broadcast.Hub
	stats  func() domain.StatsReport
	logger *log.Logger

	http *http.Server
}

// Options contains configuration for creating a Server.
type Options struct {
	Listen string
	Store  *store.RecordStore
	Hub    *broadcast.Hub
	Stats  func() domain.StatsReport
	Logger *log.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		store:  opts.Store,
		hub:    opts.Hub,
		stats:  opts.Stats,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.HandleWS)
	mux.HandleFunc("/api/data", s.handleData)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", observability.Handler())

	s.http = &http.Server{
		Addr:              opts.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route mux. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then drains connections.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("http server listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Shutdown()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

// Summary is the aggregate block served alongside the raw dataset.
type Summary struct {
	TotalTokens       int             `json:"total_tokens"`
	TotalTransactions int             `json:"total_transactions"`
	NewLaunches       int             `json:"new_launches"`
	BuyCount          int             `json:"buy_count"`
	SellCount         int             `json:"sell_count"`
	BuyVolume         decimal.Decimal `json:"buy_volume"`
	SellVolume        decimal.Decimal `json:"sell_volume"`
	TopToken          *TopToken       `json:"top_token,omitempty"`
}

type TopToken struct {
	Mint      string          `json:"mint_address"`
	Symbol    string          `json:"symbol"`
	MarketCap decimal.Decimal `json:"market_cap"`
}

type dataResponse struct {
	Snapshot *domain.Snapshot    `json:"data"`
	Summary  Summary             `json:"summary"`
	Stats    *domain.StatsReport `json:"session,omitempty"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()

	resp := dataResponse{
		Snapshot: snap,
		Summary:  Summarize(snap),
	}
	if s.stats != nil {
		rep := s.stats()
		resp.Stats = &rep
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Printf("encode /api/data response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":      "ok",
		"subscribers": s.hub.SubscriberCount(),
	})
}

// Summarize computes the aggregate block for a snapshot. Exported so
// the one-shot scraper can print the same numbers.
func Summarize(snap *domain.Snapshot) Summary {
	sum := Summary{
		TotalTokens:       len(snap.Tokens),
		TotalTransactions: len(snap.Trades),
		NewLaunches:       len(snap.Launches),
		BuyVolume:         decimal.Zero,
		SellVolume:        decimal.Zero,
	}

	for i := range snap.Trades {
		tr := &snap.Trades[i]
		switch tr.Action {
		case domain.ActionBuy:
			sum.BuyCount++
			sum.BuyVolume = sum.BuyVolume.Add(tr.Amount)
		case domain.ActionSell:
			sum.SellCount++
			sum.SellVolume = sum.SellVolume.Add(tr.Amount)
		}
	}

	for i := range snap.Tokens {
		t := &snap.Tokens[i]
		if sum.TopToken == nil || t.MarketCap.Cmp(sum.TopToken.MarketCap) > 0 {
			sum.TopToken = &TopToken{Mint: t.Mint, Symbol: t.Symbol, MarketCap: t.MarketCap}
		}
	}
	return sum
}
