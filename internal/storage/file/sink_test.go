package file

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/storage"
)

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func testSnapshot() *domain.Snapshot {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Snapshot{
		Tokens: []domain.TokenRecord{{
			Mint:      "m1",
			Name:      "Alpha",
			Symbol:    "ALP",
			Price:     decimal.RequireFromString("0.5"),
			CreatedAt: &created,
		}},
		Trades: []domain.TradeRecord{{
			Signature: "s1",
			Mint:      "m1",
			Action:    domain.ActionBuy,
			Amount:    decimal.RequireFromString("10"),
		}},
		Launches: []string{"m1"},
		TakenAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func fixedSink(t *testing.T, format Format) (*Sink, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSink(dir, format, quiet())
	require.NoError(t, err)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return s.WithClock(func() time.Time { return at }), dir
}

func TestSink_RejectsUnknownFormat(t *testing.T) {
	_, err := NewSink(t.TempDir(), Format("xml"), quiet())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestSink_PersistJSON(t *testing.T) {
	s, dir := fixedSink(t, FormatJSON)

	require.NoError(t, s.Persist(context.Background(), testSnapshot()))

	data, err := os.ReadFile(filepath.Join(dir, "tokens", "tokens_20240501_120000.json"))
	require.NoError(t, err)

	var tokens []map[string]any
	require.NoError(t, json.Unmarshal(data, &tokens))
	require.Len(t, tokens, 1)
	assert.Equal(t, "m1", tokens[0]["mint_address"])
	assert.Equal(t, "Alpha", tokens[0]["name"])

	_, err = os.Stat(filepath.Join(dir, "transactions", "transactions_20240501_120000.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "launches", "launches_20240501_120000.json"))
	assert.NoError(t, err)
}

func TestSink_PersistCSV(t *testing.T) {
	s, dir := fixedSink(t, FormatCSV)

	require.NoError(t, s.Persist(context.Background(), testSnapshot()))

	f, err := os.Open(filepath.Join(dir, "tokens", "tokens_20240501_120000.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "mint_address", rows[0][0])
	assert.Equal(t, "m1", rows[1][0])
	assert.Equal(t, "0.5", rows[1][3])
}

func TestSink_EmptyCategoriesSkipped(t *testing.T) {
	s, dir := fixedSink(t, FormatJSON)

	snap := &domain.Snapshot{
		Tokens:  []domain.TokenRecord{{Mint: "m1"}},
		TakenAt: time.Now(),
	}
	require.NoError(t, s.Persist(context.Background(), snap))

	entries, err := os.ReadDir(filepath.Join(dir, "transactions"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSink_PersistStatsOverwrites(t *testing.T) {
	s, dir := fixedSink(t, FormatJSON)

	require.NoError(t, s.PersistStats(context.Background(), domain.StatsReport{SessionID: "one"}))
	require.NoError(t, s.PersistStats(context.Background(), domain.StatsReport{SessionID: "two"}))

	data, err := os.ReadFile(filepath.Join(dir, "session_stats.json"))
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal(data, &rep))
	assert.Equal(t, "two", rep["session_id"])
}

func TestSink_NoTempFilesLeftBehind(t *testing.T) {
	s, dir := fixedSink(t, FormatJSON)

	require.NoError(t, s.Persist(context.Background(), testSnapshot()))

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		assert.NotContains(t, path, ".tmp")
		return nil
	})
	require.NoError(t, err)
}
