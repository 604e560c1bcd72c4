package stats_test

import (
	"context"
	"decode-server/internal/stats"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite checks the behaviour every backend must share. open must
// return an empty store.
func runStoreSuite(t *testing.T, open func(t *testing.T) stats.Store) {
	ctx := context.Background()

	t.Run("UnknownNameIsZero", func(t *testing.T) {
		store := open(t)

		rec, err := store.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, stats.Record{}, rec)
		assert.Equal(t, 0, rec.WinRate())
	})

	t.Run("RecordResultUpdatesBothPlayers", func(t *testing.T) {
		store := open(t)

		res, err := store.RecordResult(ctx, "Alice", "Bob")
		require.NoError(t, err)

		assert.Equal(t, 1, res.Winner.GamesPlayed)
		assert.Equal(t, 1, res.Winner.Wins)
		assert.Equal(t, 1, res.Winner.WinStreak)
		assert.Equal(t, 1, res.Winner.BestStreak)
		assert.Equal(t, 100, res.Winner.WinRate())
		assert.False(t, res.Winner.LastPlayed.IsZero())

		assert.Equal(t, 1, res.Loser.GamesPlayed)
		assert.Equal(t, 1, res.Loser.Losses)
		assert.Equal(t, 0, res.Loser.WinStreak)
		assert.Equal(t, 0, res.Loser.WinRate())

		bob, err := store.Get(ctx, "Bob")
		require.NoError(t, err)
		assert.Equal(t, res.Loser.Losses, bob.Losses)
		assert.Equal(t, res.Loser.LastPlayed.UnixMilli(), bob.LastPlayed.UnixMilli())
	})

	t.Run("StreaksResetOnLoss", func(t *testing.T) {
		store := open(t)

		for range 3 {
			_, err := store.RecordResult(ctx, "Alice", "Bob")
			require.NoError(t, err)
		}
		res, err := store.RecordResult(ctx, "Bob", "Alice")
		require.NoError(t, err)

		assert.Equal(t, 0, res.Loser.WinStreak)
		assert.Equal(t, 3, res.Loser.BestStreak)
		assert.Equal(t, 4, res.Loser.GamesPlayed)
		assert.Equal(t, 75, res.Loser.WinRate())

		assert.Equal(t, 1, res.Winner.WinStreak)
		assert.Equal(t, 1, res.Winner.BestStreak)
		assert.Equal(t, 25, res.Winner.WinRate())

		_, err = store.RecordResult(ctx, "Alice", "Bob")
		require.NoError(t, err)
		alice, err := store.Get(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, 1, alice.WinStreak)
		assert.Equal(t, 3, alice.BestStreak)
	})

	t.Run("SameNameOnBothSides", func(t *testing.T) {
		store := open(t)

		res, err := store.RecordResult(ctx, "Player", "Player")
		require.NoError(t, err)

		assert.Equal(t, 2, res.Winner.GamesPlayed)
		assert.Equal(t, 1, res.Winner.Wins)
		assert.Equal(t, 1, res.Winner.Losses)
		assert.Equal(t, 0, res.Winner.WinStreak)
		assert.Equal(t, 1, res.Winner.BestStreak)
		assert.Equal(t, res.Winner, res.Loser)
	})

	t.Run("ConcurrentResultsForSameName", func(t *testing.T) {
		store := open(t)

		var wg sync.WaitGroup
		for i := range 20 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.RecordResult(ctx, "Alice", fmt.Sprintf("Rival%d", i))
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		alice, err := store.Get(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, 20, alice.GamesPlayed)
		assert.Equal(t, 20, alice.Wins)
		assert.Equal(t, 20, alice.WinStreak)
		assert.Equal(t, 20, alice.BestStreak)
	})

	t.Run("LeaderboardOrder", func(t *testing.T) {
		store := open(t)

		// Carol: 2 wins / 2 games, Alice: 2 wins / 3 games, Bob: 1 win, Dave: 0 wins.
		results := [][2]string{
			{"Alice", "Bob"},
			{"Alice", "Dave"},
			{"Bob", "Alice"},
			{"Carol", "Dave"},
			{"Carol", "Dave"},
		}
		for _, r := range results {
			_, err := store.RecordResult(ctx, r[0], r[1])
			require.NoError(t, err)
		}

		entries, err := store.Leaderboard(ctx, stats.LeaderboardSize)
		require.NoError(t, err)

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
		}
		if diff := cmp.Diff([]string{"Carol", "Alice", "Bob", "Dave"}, names); diff != "" {
			t.Errorf("leaderboard order mismatch (-want +got):\n%s", diff)
		}
		assert.Equal(t, 100, entries[0].WinRate())
		assert.Equal(t, 67, entries[1].WinRate())

		top, err := store.Leaderboard(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, top, 2)
	})

	t.Run("LeaderboardEmpty", func(t *testing.T) {
		store := open(t)

		entries, err := store.Leaderboard(ctx, stats.LeaderboardSize)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
