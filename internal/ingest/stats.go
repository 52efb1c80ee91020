// Package ingest runs the collection session: the runner that moves
// records from the feed into the store, the session counters, and the
// periodic liveness report.
package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"pumpwatch/internal/domain"
)

// SessionStats accumulates counters for one collection session. All
// methods are safe for concurrent use.
type SessionStats struct {
	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	now       func() time.Time

	polls             int64
	messages          int64
	tokens            int64
	trades            int64
	launches          int64
	requests          int64
	requestErrors     int64
	parseErrors       int64
	reconnectAttempts int64
	conn              domain.ConnState
}

func NewSessionStats() *SessionStats {
	s := &SessionStats{
		sessionID: uuid.NewString(),
		now:       time.Now,
		conn:      domain.ConnStopped,
	}
	s.startedAt = s.now()
	return s
}

// WithClock replaces the time source. Test hook.
func (s *SessionStats) WithClock(now func() time.Time) *SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.startedAt = now()
	return s
}

func (s *SessionStats) IncPolls()         { s.add(&s.polls, 1) }
func (s *SessionStats) IncMessages()      { s.add(&s.messages, 1) }
func (s *SessionStats) AddTokens(n int)   { s.add(&s.tokens, int64(n)) }
func (s *SessionStats) AddTrades(n int)   { s.add(&s.trades, int64(n)) }
func (s *SessionStats) IncLaunches()      { s.add(&s.launches, 1) }
func (s *SessionStats) IncRequests()      { s.add(&s.requests, 1) }
func (s *SessionStats) IncRequestErrors() { s.add(&s.requestErrors, 1) }
func (s *SessionStats) IncParseErrors()   { s.add(&s.parseErrors, 1) }
func (s *SessionStats) IncReconnects()    { s.add(&s.reconnectAttempts, 1) }

func (s *SessionStats) SetConnState(c domain.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
}

func (s *SessionStats) add(field *int64, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*field += n
}

// Report returns a consistent copy of all counters.
func (s *SessionStats) Report() domain.StatsReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	uptime := s.now().Sub(s.startedAt)
	return domain.StatsReport{
		SessionID:         s.sessionID,
		StartedAt:         s.startedAt,
		Uptime:            uptime,
		UptimeSeconds:     uptime.Seconds(),
		Polls:             s.polls,
		MessagesReceived:  s.messages,
		TokensCollected:   s.tokens,
		TradesCollected:   s.trades,
		NewLaunches:       s.launches,
		Requests:          s.requests,
		RequestErrors:     s.requestErrors,
		ParseErrors:       s.parseErrors,
		ReconnectAttempts: s.reconnectAttempts,
		Connection:        s.conn,
	}
}
