package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/twentyfour/arena-backend/db"
)

// PostgresStore persists ratings, ranked matches and puzzle solves through
// database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(sqlDB *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlDB}
}

// EnsureSchema creates the tables if they are missing. Idempotent, run at
// startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS player_ratings (
			name TEXT PRIMARY KEY,
			rating INT NOT NULL,
			peak INT NOT NULL,
			games INT NOT NULL DEFAULT 0,
			wins INT NOT NULL DEFAULT 0,
			losses INT NOT NULL DEFAULT 0,
			win_streak INT NOT NULL DEFAULT 0,
			best_streak INT NOT NULL DEFAULT 0,
			last_played_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_decay_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ranked_matches (
			id BIGSERIAL PRIMARY KEY,
			room_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			winner TEXT NOT NULL,
			loser TEXT NOT NULL,
			winner_delta INT NOT NULL,
			loser_delta INT NOT NULL,
			reason TEXT NOT NULL,
			rounds INT NOT NULL,
			duration_ms BIGINT NOT NULL,
			played_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ranked_matches_winner_idx ON ranked_matches (winner, played_at DESC)`,
		`CREATE INDEX IF NOT EXISTS ranked_matches_loser_idx ON ranked_matches (loser, played_at DESC)`,
		`CREATE TABLE IF NOT EXISTS puzzle_solves (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL,
			cards TEXT NOT NULL,
			solution TEXT NOT NULL,
			solve_time_ms BIGINT NOT NULL,
			solved_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetPlayer(ctx context.Context, name string) (*db.PlayerRating, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, rating, peak, games, wins, losses, win_streak, best_streak,
		       last_played_at, last_decay_at, created_at
		FROM player_ratings WHERE name = $1`, name)

	var p db.PlayerRating
	err := row.Scan(&p.Name, &p.Rating, &p.Peak, &p.Games, &p.Wins, &p.Losses,
		&p.WinStreak, &p.BestStreak, &p.LastPlayedAt, &p.LastDecayAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", name, err)
	}
	return &p, nil
}

func (s *PostgresStore) UpsertPlayer(ctx context.Context, p *db.PlayerRating) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO player_ratings
			(name, rating, peak, games, wins, losses, win_streak, best_streak,
			 last_played_at, last_decay_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (name) DO UPDATE SET
			rating = EXCLUDED.rating,
			peak = EXCLUDED.peak,
			games = EXCLUDED.games,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			win_streak = EXCLUDED.win_streak,
			best_streak = EXCLUDED.best_streak,
			last_played_at = EXCLUDED.last_played_at,
			last_decay_at = EXCLUDED.last_decay_at`,
		p.Name, p.Rating, p.Peak, p.Games, p.Wins, p.Losses,
		p.WinStreak, p.BestStreak, p.LastPlayedAt, p.LastDecayAt)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", p.Name, err)
	}
	return nil
}

func (s *PostgresStore) InsertMatch(ctx context.Context, m *db.RankedMatch) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ranked_matches
			(room_id, mode, winner, loser, winner_delta, loser_delta, reason, rounds, duration_ms, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.RoomID, m.Mode, m.Winner, m.Loser, m.WinnerDelta, m.LoserDelta,
		m.Reason, m.Rounds, m.DurationMs, m.PlayedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertSolve(ctx context.Context, solve *db.PuzzleSolve) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO puzzle_solves (username, cards, solution, solve_time_ms, solved_at)
		VALUES ($1, $2, $3, $4, $5)`,
		solve.Username, solve.Cards, solve.Solution, solve.SolveTimeMs, solve.SolvedAt)
	if err != nil {
		return fmt.Errorf("insert solve: %w", err)
	}
	return nil
}
