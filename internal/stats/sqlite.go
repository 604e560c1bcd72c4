package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteSelect = `
		SELECT games_played, wins, losses, win_streak, best_streak, last_played
		FROM player_stats WHERE name = ?
	`

	sqliteWin = `
		INSERT INTO player_stats (name, games_played, wins, losses, win_streak, best_streak, last_played)
		VALUES (?, 1, 1, 0, 1, 1, ?)
		ON CONFLICT (name) DO UPDATE SET
			games_played = player_stats.games_played + 1,
			wins         = player_stats.wins + 1,
			win_streak   = player_stats.win_streak + 1,
			best_streak  = MAX(player_stats.best_streak, player_stats.win_streak + 1),
			last_played  = excluded.last_played
		RETURNING games_played, wins, losses, win_streak, best_streak, last_played
	`

	sqliteLoss = `
		INSERT INTO player_stats (name, games_played, wins, losses, win_streak, best_streak, last_played)
		VALUES (?, 1, 0, 1, 0, 0, ?)
		ON CONFLICT (name) DO UPDATE SET
			games_played = player_stats.games_played + 1,
			losses       = player_stats.losses + 1,
			win_streak   = 0,
			last_played  = excluded.last_played
		RETURNING games_played, wins, losses, win_streak, best_streak, last_played
	`

	sqliteLeaderboard = `
		SELECT name, games_played, wins, losses, win_streak, best_streak, last_played
		FROM player_stats
		ORDER BY wins DESC,
			CASE WHEN games_played > 0 THEN ROUND(100.0 * wins / games_played) ELSE 0 END DESC,
			name ASC
		LIMIT ?
	`
)

// SQLiteStore keeps records in a player_stats table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %w", ErrStore, path, err)
	}

	// One writer at a time; also keeps ":memory:" a single shared database.
	db.SetMaxOpenConns(1)

	if err := runMigrations(db, "sqlite3"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, sqliteSelect, name))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Record{}, nil
	case err != nil:
		return Record{}, wrapStoreErr(err)
	}
	return rec, nil
}

func (s *SQLiteStore) RecordResult(ctx context.Context, winner, loser string) (Result, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, wrapStoreErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	at := s.now().UnixMilli()

	var res Result
	if res.Winner, err = scanRecord(tx.QueryRowContext(ctx, sqliteWin, winner, at)); err != nil {
		return Result{}, wrapStoreErr(err)
	}
	if res.Loser, err = scanRecord(tx.QueryRowContext(ctx, sqliteLoss, loser, at)); err != nil {
		return Result{}, wrapStoreErr(err)
	}
	if winner == loser {
		res.Winner = res.Loser
	}

	if err := tx.Commit(); err != nil {
		return Result{}, wrapStoreErr(err)
	}
	return res, nil
}

func (s *SQLiteStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, sqliteLeaderboard, limit)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var last sql.NullInt64
		if err := rows.Scan(&e.Name, &e.GamesPlayed, &e.Wins, &e.Losses, &e.WinStreak, &e.BestStreak, &last); err != nil {
			return nil, wrapStoreErr(err)
		}
		if last.Valid {
			e.LastPlayed = time.UnixMilli(last.Int64)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}

	return entries, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(row *sql.Row) (Record, error) {
	var rec Record
	var last sql.NullInt64
	if err := row.Scan(&rec.GamesPlayed, &rec.Wins, &rec.Losses, &rec.WinStreak, &rec.BestStreak, &last); err != nil {
		return Record{}, err
	}
	if last.Valid {
		rec.LastPlayed = time.UnixMilli(last.Int64)
	}
	return rec, nil
}

// wrapStoreErr leaves cancellation errors bare so callers can recognise them.
func wrapStoreErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
