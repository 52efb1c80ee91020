package domain

import "time"

// ConnState describes the upstream connection, mirroring the reconnect
// state machine: connected, reconnecting, or stopped.
type ConnState string

const (
	ConnConnected    ConnState = "connected"
	ConnReconnecting ConnState = "reconnecting"
	ConnStopped      ConnState = "stopped"
)

// StatsReport is a read-only view of the session counters, produced for the
// liveness reporter, the /api/data handler and the final shutdown summary.
type StatsReport struct {
	SessionID         string        `json:"session_id"`
	StartedAt         time.Time     `json:"started_at"`
	Uptime            time.Duration `json:"-"`
	UptimeSeconds     float64       `json:"session_duration_seconds"`
	Polls             int64         `json:"polls"`
	MessagesReceived  int64         `json:"messages_received"`
	TokensCollected   int64         `json:"tokens_collected"`
	TradesCollected   int64         `json:"transactions_collected"`
	NewLaunches       int64         `json:"new_launches"`
	Requests          int64         `json:"api_requests"`
	RequestErrors     int64         `json:"connection_errors"`
	ParseErrors       int64         `json:"parse_errors"`
	ReconnectAttempts int64         `json:"reconnection_attempts"`
	Connection        ConnState     `json:"connection_state"`
}
