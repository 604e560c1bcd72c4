package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const (
	pgSelect = `
		SELECT games_played, wins, losses, win_streak, best_streak, last_played
		FROM player_stats WHERE name = $1
	`

	pgWin = `
		INSERT INTO player_stats (name, games_played, wins, losses, win_streak, best_streak, last_played)
		VALUES ($1, 1, 1, 0, 1, 1, $2)
		ON CONFLICT (name) DO UPDATE SET
			games_played = player_stats.games_played + 1,
			wins         = player_stats.wins + 1,
			win_streak   = player_stats.win_streak + 1,
			best_streak  = GREATEST(player_stats.best_streak, player_stats.win_streak + 1),
			last_played  = EXCLUDED.last_played
		RETURNING games_played, wins, losses, win_streak, best_streak, last_played
	`

	pgLoss = `
		INSERT INTO player_stats (name, games_played, wins, losses, win_streak, best_streak, last_played)
		VALUES ($1, 1, 0, 1, 0, 0, $2)
		ON CONFLICT (name) DO UPDATE SET
			games_played = player_stats.games_played + 1,
			losses       = player_stats.losses + 1,
			win_streak   = 0,
			last_played  = EXCLUDED.last_played
		RETURNING games_played, wins, losses, win_streak, best_streak, last_played
	`

	pgLeaderboard = `
		SELECT name, games_played, wins, losses, win_streak, best_streak, last_played
		FROM player_stats
		ORDER BY wins DESC,
			CASE WHEN games_played > 0 THEN ROUND(100.0 * wins / games_played) ELSE 0 END DESC,
			name ASC
		LIMIT $1
	`
)

// PostgresStore keeps records in PostgreSQL through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresStore connects to connString and migrates the schema.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrStore, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrStore, err)
	}

	// goose needs database/sql; borrow connections from the pool for it.
	db := stdlib.OpenDBFromPool(pool)
	err = runMigrations(db, "postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}

	return &PostgresStore{pool: pool, now: time.Now}, nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (Record, error) {
	rec, err := scanPgRecord(s.pool.QueryRow(ctx, pgSelect, name))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Record{}, nil
	case err != nil:
		return Record{}, wrapStoreErr(err)
	}
	return rec, nil
}

func (s *PostgresStore) RecordResult(ctx context.Context, winner, loser string) (Result, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Result{}, wrapStoreErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	at := s.now().UnixMilli()

	var res Result
	if res.Winner, err = scanPgRecord(tx.QueryRow(ctx, pgWin, winner, at)); err != nil {
		return Result{}, wrapStoreErr(err)
	}
	if res.Loser, err = scanPgRecord(tx.QueryRow(ctx, pgLoss, loser, at)); err != nil {
		return Result{}, wrapStoreErr(err)
	}
	if winner == loser {
		res.Winner = res.Loser
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, wrapStoreErr(err)
	}
	return res, nil
}

func (s *PostgresStore) Leaderboard(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, pgLeaderboard, limit)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var last *int64
		if err := rows.Scan(&e.Name, &e.GamesPlayed, &e.Wins, &e.Losses, &e.WinStreak, &e.BestStreak, &last); err != nil {
			return nil, wrapStoreErr(err)
		}
		e.LastPlayed = millisOrZero(last)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr(err)
	}

	return entries, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgRecord(row pgx.Row) (Record, error) {
	var rec Record
	var last *int64
	if err := row.Scan(&rec.GamesPlayed, &rec.Wins, &rec.Losses, &rec.WinStreak, &rec.BestStreak, &last); err != nil {
		return Record{}, err
	}
	rec.LastPlayed = millisOrZero(last)
	return rec, nil
}
