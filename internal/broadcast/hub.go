// Package broadcast pushes dataset deltas to dashboard subscribers
// over WebSocket. Each subscriber gets its own session with its own
// change tracker, so "new" and price direction are relative to what
// that subscriber has already been shown.
package broadcast

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pumpwatch/internal/observability"
	"pumpwatch/internal/store"
)

// DefaultInterval is the default delta push cadence.
const DefaultInterval = 1 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// Hub owns the set of live dashboard sessions.
type Hub struct {
	store    *store.RecordStore
	logger   *log.Logger
	metrics  *observability.Metrics
	interval time.Duration
	flagTTL  time.Duration

	mu       sync.Mutex
	sessions map[*session]struct{}
	closed   bool
}

// Options contains configuration for creating a Hub.
type Options struct {
	Store    *store.RecordStore
	Logger   *log.Logger
	Metrics  *observability.Metrics
	Interval time.Duration
	// NewFlagTTL is how long tokens keep their "new" highlight.
	NewFlagTTL time.Duration
}

func NewHub(opts Options) *Hub {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		store:    opts.Store,
		logger:   logger,
		metrics:  opts.Metrics,
		interval: interval,
		flagTTL:  opts.NewFlagTTL,
		sessions: make(map[*session]struct{}),
	}
}

// HandleWS upgrades the request and runs a session until the client
// goes away or the hub shuts down.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	s := newSession(h, conn)
	if !h.add(s) {
		conn.Close()
		return
	}
	h.logger.Printf("subscriber connected from %s", r.RemoteAddr)

	go s.writePump()
	go s.readPump()
}

// SubscriberCount returns the number of live sessions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every live session. New connections are rejected
// afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

func (h *Hub) add(s *session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.sessions[s] = struct{}{}
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.sessions)))
	}
	return true
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	if h.metrics != nil {
		h.metrics.Subscribers.Set(float64(len(h.sessions)))
	}
	h.logger.Println("subscriber disconnected")
}
