package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/storage"
	"pumpwatch/internal/store"
)

type fakeSink struct {
	mu        sync.Mutex
	name      string
	snapshots []*domain.Snapshot
	stats     []domain.StatsReport
	fail      bool
	closed    bool
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Persist(ctx context.Context, snap *domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sink down")
	}
	f.snapshots = append(f.snapshots, snap)
	return nil
}

func (f *fakeSink) PersistStats(ctx context.Context, rep domain.StatsReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats = append(f.stats, rep)
	return nil
}

func (f *fakeSink) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}

var _ storage.Sink = (*fakeSink)(nil)
var _ storage.StatsSink = (*fakeSink)(nil)

func seededStore() *store.RecordStore {
	st := store.New(10)
	st.UpsertToken(&domain.TokenRecord{Mint: "m1", Name: "Alpha"})
	return st
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func TestPersister_FlushWritesAllSinks(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	p := New(Options{Store: seededStore(), Sinks: []storage.Sink{a, b}, Logger: quiet()})

	p.Flush(context.Background())

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
	assert.Equal(t, "m1", a.snapshots[0].Tokens[0].Mint)
}

func TestPersister_FailingSinkDoesNotBlockOthers(t *testing.T) {
	bad := &fakeSink{name: "bad", fail: true}
	good := &fakeSink{name: "good"}
	p := New(Options{Store: seededStore(), Sinks: []storage.Sink{bad, good}, Logger: quiet()})

	p.Flush(context.Background())

	assert.Equal(t, 0, bad.count())
	assert.Equal(t, 1, good.count())
}

func TestPersister_SinkFailuresGoThroughErrorf(t *testing.T) {
	bad := &fakeSink{name: "bad", fail: true}
	var lines []string
	p := New(Options{
		Store:  seededStore(),
		Sinks:  []storage.Sink{bad},
		Logger: quiet(),
		Errorf: func(format string, args ...any) {
			lines = append(lines, fmt.Sprintf(format, args...))
		},
	})

	p.Flush(context.Background())
	p.Flush(context.Background())

	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "persist to bad failed")
}

func TestPersister_EmptyStoreSkipsWrite(t *testing.T) {
	s := &fakeSink{name: "s"}
	p := New(Options{Store: store.New(10), Sinks: []storage.Sink{s}, Logger: quiet()})

	p.Flush(context.Background())

	assert.Equal(t, 0, s.count())
}

func TestPersister_StatsRoutedToStatsSinks(t *testing.T) {
	s := &fakeSink{name: "s"}
	p := New(Options{
		Store: seededStore(),
		Sinks: []storage.Sink{s},
		Stats: func() domain.StatsReport {
			return domain.StatsReport{SessionID: "sess-1", Polls: 7}
		},
		Logger: quiet(),
	})

	p.Flush(context.Background())

	require.Len(t, s.stats, 1)
	assert.Equal(t, "sess-1", s.stats[0].SessionID)
	assert.Equal(t, int64(7), s.stats[0].Polls)
}

func TestPersister_RunFlushesOnIntervalAndAtShutdown(t *testing.T) {
	s := &fakeSink{name: "s"}
	p := New(Options{
		Store:    seededStore(),
		Sinks:    []storage.Sink{s},
		Logger:   quiet(),
		Interval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// Let at least two ticks pass.
	time.Sleep(50 * time.Millisecond)
	ticked := s.count()
	assert.GreaterOrEqual(t, ticked, 2)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("persister did not stop")
	}

	// The shutdown path adds a final flush.
	assert.GreaterOrEqual(t, s.count(), ticked+1)
}

func TestPersister_CloseClosesSinks(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	p := New(Options{Store: seededStore(), Sinks: []storage.Sink{a, b}, Logger: quiet()})

	require.NoError(t, p.Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
