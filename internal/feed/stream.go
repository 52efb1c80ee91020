package feed

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pumpwatch/internal/domain"
)

// StreamConfig configures the WebSocket streamer.
type StreamConfig struct {
	// Endpoint is the gateway WebSocket URL.
	Endpoint string
	// ReconnectBase is the initial delay before a reconnect attempt.
	ReconnectBase time.Duration
	// ReconnectMax is the delay ceiling between reconnect attempts.
	ReconnectMax time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// ReadTimeout is the max silence before the connection is declared dead.
	ReadTimeout time.Duration
	// SubscribeTrades also subscribes the swap firehose, not just new tokens.
	SubscribeTrades bool
}

// DefaultStreamConfig returns the default streamer configuration.
func DefaultStreamConfig(endpoint string) StreamConfig {
	return StreamConfig{
		Endpoint:         endpoint,
		ReconnectBase:    DefaultReconnectBase,
		ReconnectMax:     DefaultReconnectMax,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      90 * time.Second,
		SubscribeTrades:  true,
	}
}

// Stream consumes the gateway's push feed. It owns one connection at a
// time and reconnects forever on failure, doubling the wait between
// attempts up to the ceiling and starting over after any successful
// connect. Events closes when Run returns.
type Stream struct {
	cfg    StreamConfig
	policy *ReconnectPolicy
	logger *log.Logger

	events chan Event
	state  atomic.Value // domain.ConnState

	// onStateChange, onReconnect and onParseError are stats hooks; any
	// may be nil.
	onStateChange func(domain.ConnState)
	onReconnect   func(attempt int, wait time.Duration)
	onParseError  func(error)
}

// StreamOption configures Stream.
type StreamOption func(*Stream)

// WithStreamLogger sets the stream logger.
func WithStreamLogger(l *log.Logger) StreamOption {
	return func(s *Stream) { s.logger = l }
}

// WithStateHook registers a callback for connection state transitions.
func WithStateHook(fn func(domain.ConnState)) StreamOption {
	return func(s *Stream) { s.onStateChange = fn }
}

// WithReconnectHook registers a callback invoked before each reconnect wait.
func WithReconnectHook(fn func(attempt int, wait time.Duration)) StreamOption {
	return func(s *Stream) { s.onReconnect = fn }
}

// WithStreamParseErrorHook registers a callback for skipped malformed
// frames. When set, the hook owns reporting and the stream does not log
// the frame itself.
func WithStreamParseErrorHook(fn func(error)) StreamOption {
	return func(s *Stream) { s.onParseError = fn }
}

// NewStream creates a streamer. Call Run to start it.
func NewStream(cfg StreamConfig, opts ...StreamOption) *Stream {
	s := &Stream{
		cfg:    cfg,
		policy: NewReconnectPolicy(cfg.ReconnectBase, cfg.ReconnectMax),
		logger: log.New(log.Writer(), "[stream] ", log.LstdFlags),
		events: make(chan Event, 256),
	}
	s.state.Store(domain.ConnStopped)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the channel records are delivered on.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// State reports the current connection state.
func (s *Stream) State() domain.ConnState {
	return s.state.Load().(domain.ConnState)
}

// Run connects and pumps events until ctx is cancelled. It never
// returns on connection failure; a dead connection only changes the
// state to reconnecting and schedules the next attempt.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.events)
	defer s.setState(domain.ConnStopped)

	attempt := 0
	for {
		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			wait := s.policy.Next()
			s.setState(domain.ConnReconnecting)
			if s.onReconnect != nil {
				s.onReconnect(attempt, wait)
			}
			s.logger.Printf("connect failed (attempt %d, retrying in %s): %v", attempt, wait, err)
			if !sleepCtx(ctx, wait) {
				return ctx.Err()
			}
			continue
		}

		attempt = 0
		s.policy.Reset()
		s.setState(domain.ConnConnected)
		s.logger.Printf("connected to %s", s.cfg.Endpoint)

		err = s.pump(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Printf("connection lost: %v", err)
	}
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.cfg.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	if err := s.subscribe(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	methods := []string{"subscribeNewToken"}
	if s.cfg.SubscribeTrades {
		methods = append(methods, "subscribeTokenTrade")
	}
	for _, m := range methods {
		if err := conn.WriteJSON(map[string]string{"method": m}); err != nil {
			return err
		}
	}
	return nil
}

// pump reads until the connection dies or ctx is cancelled.
func (s *Stream) pump(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage when the context goes away.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		ev, err := classifyEvent(raw)
		if err != nil {
			s.skipFrame(err)
			continue
		}
		if ev == nil {
			continue // control frame
		}

		select {
		case s.events <- *ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// classifyEvent turns a raw frame into an Event. Frames carrying a
// transaction signature are trades, frames carrying a mint are tokens,
// and subscription acks (a bare "message" field) are dropped.
func classifyEvent(raw []byte) (*Event, error) {
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	if pickString(m, signatureKeys) != "" {
		tr, err := tradeFromMap(m)
		if err != nil {
			return nil, err
		}
		return &Event{Trade: tr}, nil
	}

	if pickString(m, mintKeys) == "" {
		if _, ok := m["message"]; ok {
			return nil, nil
		}
		return nil, errors.New("frame has neither signature nor mint")
	}

	tok, err := tokenFromMap(m)
	if err != nil {
		return nil, err
	}
	return &Event{Token: tok}, nil
}

func (s *Stream) skipFrame(err error) {
	if s.onParseError != nil {
		s.onParseError(err)
		return
	}
	s.logger.Printf("skipping malformed message: %v", err)
}

func (s *Stream) setState(st domain.ConnState) {
	prev := s.state.Swap(st)
	if prev != st && s.onStateChange != nil {
		s.onStateChange(st)
	}
}

// sleepCtx waits for d or until ctx is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ Streamer = (*Stream)(nil)
