package stats_test

import (
	"context"
	"decode-server/internal/stats"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) stats.Store {
		store, err := stats.NewFileStore(filepath.Join(t.TempDir(), "player-stats.json"))
		require.NoError(t, err)
		return store
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) stats.Store {
		return stats.NewMemoryStore()
	})
}

func TestFileStoreSurvivesReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "player-stats.json")

	store, err := stats.NewFileStore(path)
	require.NoError(t, err)
	_, err = store.RecordResult(ctx, "Alice", "Bob")
	require.NoError(t, err)

	reloaded, err := stats.NewFileStore(path)
	require.NoError(t, err)

	alice, err := reloaded.Get(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Wins)
	assert.Equal(t, 1, alice.BestStreak)
	assert.False(t, alice.LastPlayed.IsZero())
}

func TestFileStoreDocumentLayout(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "player-stats.json")

	store, err := stats.NewFileStore(path)
	require.NoError(t, err)
	_, err = store.RecordResult(ctx, "Alice", "Bob")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Len(t, doc, 2)
	assert.EqualValues(t, 1, doc["Alice"]["wins"])
	assert.EqualValues(t, 1, doc["Bob"]["losses"])
	assert.Contains(t, doc["Alice"], "lastPlayed")
	assert.NotContains(t, doc["Alice"], "winRate")
	assert.NotContains(t, doc["Bob"], "winRate")
}

func TestFileStoreRejectsCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player-stats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := stats.NewFileStore(path)
	assert.ErrorIs(t, err, stats.ErrStore)
}

func TestFileStoreWriteFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "gone", "player-stats.json")

	store, err := stats.NewFileStore(path)
	require.NoError(t, err)

	res, err := store.RecordResult(ctx, "Alice", "Bob")
	assert.ErrorIs(t, err, stats.ErrStore)
	assert.Equal(t, 1, res.Winner.Wins)

	alice, err := store.Get(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, alice.Wins)
}

func TestRecordJSON(t *testing.T) {
	data, err := json.Marshal(stats.Record{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"gamesPlayed":0,"wins":0,"losses":0,"winStreak":0,"bestStreak":0,"winRate":0}`, string(data))

	data, err = json.Marshal(stats.Entry{Name: "Alice", Record: stats.Record{GamesPlayed: 3, Wins: 2, Losses: 1}})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "Alice", out["name"])
	assert.EqualValues(t, 67, out["winRate"])
	assert.NotContains(t, out, "lastPlayed")
}
