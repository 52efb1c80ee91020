package ingest

import (
	"bytes"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/store"
)

func newTestStore(t *testing.T) *store.RecordStore {
	t.Helper()
	st := store.New(10)
	st.UpsertToken(&domain.TokenRecord{Mint: "m1"})
	return st
}

func TestSessionStats_Report(t *testing.T) {
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewSessionStats().WithClock(func() time.Time { return at })

	s.IncPolls()
	s.AddTokens(3)
	s.AddTrades(2)
	s.IncLaunches()
	s.IncRequests()
	s.IncRequestErrors()
	s.IncParseErrors()
	s.IncReconnects()
	s.SetConnState(domain.ConnConnected)

	at = at.Add(90 * time.Second)
	rep := s.Report()

	assert.NotEmpty(t, rep.SessionID)
	assert.Equal(t, int64(1), rep.Polls)
	assert.Equal(t, int64(3), rep.TokensCollected)
	assert.Equal(t, int64(2), rep.TradesCollected)
	assert.Equal(t, int64(1), rep.NewLaunches)
	assert.Equal(t, int64(1), rep.ReconnectAttempts)
	assert.Equal(t, domain.ConnConnected, rep.Connection)
	assert.Equal(t, 90*time.Second, rep.Uptime)
	assert.Equal(t, 90.0, rep.UptimeSeconds)
}

func TestSessionStats_ConcurrentWriters(t *testing.T) {
	s := NewSessionStats()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IncMessages()
				s.AddTokens(1)
			}
		}()
	}
	wg.Wait()

	rep := s.Report()
	assert.Equal(t, int64(1000), rep.MessagesReceived)
	assert.Equal(t, int64(1000), rep.TokensCollected)
}

func TestErrorLog_SuppressesRepeats(t *testing.T) {
	var buf bytes.Buffer
	e := NewErrorLog(log.New(&buf, "", 0), time.Hour)

	for i := 0; i < 5; i++ {
		e.Errorf(CatRequest, "boom %d", i)
	}

	assert.Equal(t, "[request] boom 0\n", buf.String())
	assert.Equal(t, 4, e.Suppressed(CatRequest))
}

func TestErrorLog_CategoriesIndependent(t *testing.T) {
	var buf bytes.Buffer
	e := NewErrorLog(log.New(&buf, "", 0), time.Hour)

	e.Errorf(CatRequest, "request boom")
	e.Errorf(CatParse, "parse boom")

	out := buf.String()
	assert.Contains(t, out, "[request] request boom")
	assert.Contains(t, out, "[parse] parse boom")
}

func TestErrorLog_ReportsSuppressedCountOnNextLine(t *testing.T) {
	var buf bytes.Buffer
	e := NewErrorLog(log.New(&buf, "", 0), 10*time.Millisecond)

	e.Errorf(CatStream, "first")
	e.Errorf(CatStream, "hidden")
	e.Errorf(CatStream, "hidden")

	time.Sleep(20 * time.Millisecond)
	e.Errorf(CatStream, "second")

	assert.Contains(t, buf.String(), "second (2 similar suppressed)")
	assert.Equal(t, 0, e.Suppressed(CatStream))
}

func TestReporter_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	stats := NewSessionStats()
	stats.SetConnState(domain.ConnConnected)
	stats.IncPolls()

	r := NewReporter(stats, newTestStore(t), log.New(&buf, "", 0), time.Minute)
	r.Report()

	out := buf.String()
	assert.Contains(t, out, "conn=connected")
	assert.Contains(t, out, "polls=1")
	assert.Contains(t, out, "tokens=1")
}
