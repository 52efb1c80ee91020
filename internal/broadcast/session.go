package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pumpwatch/internal/detect"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 512
)

// Wire event types.
const (
	eventConnected = "connected"
	eventUpdate    = "update"
	eventError     = "error"
)

type connectedEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

type updateEvent struct {
	Type              string              `json:"type"`
	Timestamp         string              `json:"timestamp"`
	Tokens            []detect.TokenDelta `json:"tokens"`
	NewCoins          []string            `json:"new_coins"`
	TransactionsCount int                 `json:"transactions_count"`
	DatasetTimestamp  string              `json:"dataset_timestamp"`
	UsingSampleData   bool                `json:"using_sample_data"`
}

type errorEvent struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// session is one connected dashboard client. The write pump is the
// only goroutine that touches the connection for writes; the read
// pump exists to process pongs and notice the client going away.
type session struct {
	hub     *Hub
	conn    *websocket.Conn
	tracker *detect.Tracker

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(h *Hub, conn *websocket.Conn) *session {
	return &session{
		hub:     h,
		conn:    conn,
		tracker: detect.NewTracker(h.flagTTL),
		done:    make(chan struct{}),
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		s.hub.remove(s)
	})
}

// readPump discards client messages and keeps the pong deadline fresh.
func (s *session) readPump() {
	defer s.close()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump sends the greeting, then a delta on every tick. Any write
// failure tears the session down; an update that cannot be built is
// reported to the client as an error event and the session survives.
func (s *session) writePump() {
	ticker := time.NewTicker(s.hub.interval)
	pinger := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		pinger.Stop()
		s.close()
	}()

	if err := s.writeJSON(connectedEvent{
		Type:      eventConnected,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return
	}

	for {
		select {
		case <-s.done:
			return
		case <-pinger.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.sendUpdate(); err != nil {
				return
			}
		}
	}
}

func (s *session) sendUpdate() error {
	snap := s.hub.store.Snapshot()
	delta := s.tracker.Diff(snap.Tokens)

	ev := updateEvent{
		Type:              eventUpdate,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Tokens:            delta.Tokens,
		NewCoins:          delta.NewMints,
		TransactionsCount: len(snap.Trades),
		DatasetTimestamp:  snap.TakenAt.UTC().Format(time.RFC3339),
		UsingSampleData:   false,
	}
	if ev.NewCoins == nil {
		ev.NewCoins = []string{}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		// The client stays connected; it just hears about the failure.
		s.hub.logger.Printf("building update failed: %v", err)
		return s.writeJSON(errorEvent{
			Type:      eventError,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Message:   "failed to build update",
		})
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	if s.hub.metrics != nil {
		s.hub.metrics.UpdatesBroadcast.Inc()
	}
	return nil
}

func (s *session) writeJSON(v any) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}
