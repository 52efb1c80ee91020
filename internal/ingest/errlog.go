package ingest

import (
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Error log categories.
const (
	CatRequest = "request"
	CatParse   = "parse"
	CatPersist = "persist"
	CatStream  = "stream"
)

// ErrorLog rate-limits error output per category so a flapping upstream
// cannot flood the log. Suppressed repeats are counted and surfaced on
// the next line that does get through.
type ErrorLog struct {
	logger *log.Logger
	every  time.Duration

	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	suppressed map[string]int
}

// NewErrorLog creates a rate-limited error logger that prints at most
// one line per category per interval.
func NewErrorLog(logger *log.Logger, every time.Duration) *ErrorLog {
	if every <= 0 {
		every = 10 * time.Second
	}
	return &ErrorLog{
		logger:     logger,
		every:      every,
		limiters:   make(map[string]*rate.Limiter),
		suppressed: make(map[string]int),
	}
}

// Errorf logs one formatted error line under a category, or swallows it
// if the category already printed within the interval.
func (e *ErrorLog) Errorf(category, format string, args ...any) {
	e.mu.Lock()
	lim, ok := e.limiters[category]
	if !ok {
		lim = rate.NewLimiter(rate.Every(e.every), 1)
		e.limiters[category] = lim
	}
	if !lim.Allow() {
		e.suppressed[category]++
		e.mu.Unlock()
		return
	}
	n := e.suppressed[category]
	e.suppressed[category] = 0
	e.mu.Unlock()

	if n > 0 {
		e.logger.Printf("[%s] "+format+" (%d similar suppressed)", append(append([]any{category}, args...), n)...)
		return
	}
	e.logger.Printf("[%s] "+format, append([]any{category}, args...)...)
}

// Suppressed returns how many lines a category has swallowed since the
// last printed one.
func (e *ErrorLog) Suppressed(category string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.suppressed[category]
}
