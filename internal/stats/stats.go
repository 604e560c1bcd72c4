// Package stats keeps per-player win/loss records, keyed by display name.
package stats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"math"
	"slices"
	"time"
)

// LeaderboardSize is how many entries the public leaderboard shows.
const LeaderboardSize = 20

// ErrStore wraps every backend failure so callers can tell persistence
// problems apart from context cancellation.
var ErrStore = errors.New("stats store failure")

// Store is the durable record of finished games.
type Store interface {
	// Get returns the record for name, or a zero Record if the name has never played.
	Get(ctx context.Context, name string) (Record, error)

	// RecordResult applies one finished game and returns both updated records.
	// Implementations serialize updates that touch the same name.
	RecordResult(ctx context.Context, winner, loser string) (Result, error)

	// Leaderboard returns up to limit entries ordered by wins, then win rate, then name.
	Leaderboard(ctx context.Context, limit int) ([]Entry, error)

	Close() error
}

type Record struct {
	GamesPlayed int
	Wins        int
	Losses      int
	WinStreak   int
	BestStreak  int
	LastPlayed  time.Time
}

// Result holds the records of both players after a game has been applied.
type Result struct {
	Winner Record
	Loser  Record
}

// Entry is one leaderboard row.
type Entry struct {
	Name string
	Record
}

// WinRate is the rounded win percentage. Never stored.
func (r Record) WinRate() int {
	if r.GamesPlayed <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(r.Wins) / float64(r.GamesPlayed)))
}

func (r Record) applyWin(at time.Time) Record {
	r.GamesPlayed++
	r.Wins++
	r.WinStreak++
	r.BestStreak = max(r.BestStreak, r.WinStreak)
	r.LastPlayed = at
	return r
}

func (r Record) applyLoss(at time.Time) Record {
	r.GamesPlayed++
	r.Losses++
	r.WinStreak = 0
	r.LastPlayed = at
	return r
}

// storedRecord is the persisted shape. winRate is derived and never stored.
type storedRecord struct {
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	WinStreak   int    `json:"winStreak"`
	BestStreak  int    `json:"bestStreak"`
	LastPlayed  *int64 `json:"lastPlayed,omitempty"`
}

func (r Record) stored() storedRecord {
	out := storedRecord{
		GamesPlayed: r.GamesPlayed,
		Wins:        r.Wins,
		Losses:      r.Losses,
		WinStreak:   r.WinStreak,
		BestStreak:  r.BestStreak,
	}
	if !r.LastPlayed.IsZero() {
		ms := r.LastPlayed.UnixMilli()
		out.LastPlayed = &ms
	}
	return out
}

func (s storedRecord) record() Record {
	return Record{
		GamesPlayed: s.GamesPlayed,
		Wins:        s.Wins,
		Losses:      s.Losses,
		WinStreak:   s.WinStreak,
		BestStreak:  s.BestStreak,
		LastPlayed:  millisOrZero(s.LastPlayed),
	}
}

// recordJSON is the client view: the stored counters plus winRate.
type recordJSON struct {
	storedRecord
	WinRate int `json:"winRate"`
}

func (r Record) toJSON() recordJSON {
	return recordJSON{storedRecord: r.stored(), WinRate: r.WinRate()}
}

// MarshalJSON emits the client shape: counters, lastPlayed in unix millis and
// the derived winRate.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.toJSON())
}

// UnmarshalJSON accepts the same shape; winRate is ignored.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in storedRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = in.record()
	return nil
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
		recordJSON
	}{
		Name:       e.Name,
		recordJSON: e.Record.toJSON(),
	})
}

func sortEntries(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Wins, a.Wins); c != 0 {
			return c
		}
		if c := cmp.Compare(b.WinRate(), a.WinRate()); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

func millisOrZero(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms)
}
