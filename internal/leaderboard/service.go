// Package leaderboard serves ranked standings and per-player match history
// out of the ratings tables.
package leaderboard

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/twentyfour/arena-backend/db"
	"github.com/twentyfour/arena-backend/internal/rating"
)

type Service struct {
	db *sql.DB
}

func NewService(sqlDB *sql.DB) *Service {
	return &Service{db: sqlDB}
}

// Entry is one leaderboard row. Rank is 1-based and offset-aware.
type Entry struct {
	Rank    int     `json:"rank"`
	Name    string  `json:"name"`
	Rating  int     `json:"rating"`
	Peak    int     `json:"peak"`
	Tier    string  `json:"tier"`
	Games   int     `json:"games"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	WinRate float64 `json:"win_rate"`
	BestRun int     `json:"best_streak"`
}

// Top returns the standings ordered by rating. Accounts still in placement
// are excluded.
func (s *Service) Top(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, rating, peak, games, wins, losses, best_streak
		FROM player_ratings
		WHERE games >= $1
		ORDER BY rating DESC, name ASC
		LIMIT $2 OFFSET $3`, rating.PlacementGames, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Name, &e.Rating, &e.Peak, &e.Games, &e.Wins, &e.Losses, &e.BestRun); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = offset + len(entries) + 1
		e.Tier = rating.TierFor(e.Rating, e.Games)
		if e.Games > 0 {
			e.WinRate = float64(e.Wins) / float64(e.Games)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// History returns a player's most recent ranked matches, newest first.
func (s *Service) History(ctx context.Context, name string, limit int) ([]db.RankedMatch, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, mode, winner, loser, winner_delta, loser_delta,
		       reason, rounds, duration_ms, played_at
		FROM ranked_matches
		WHERE winner = $1 OR loser = $1
		ORDER BY played_at DESC
		LIMIT $2`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query history for %s: %w", name, err)
	}
	defer rows.Close()

	var matches []db.RankedMatch
	for rows.Next() {
		var m db.RankedMatch
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Mode, &m.Winner, &m.Loser,
			&m.WinnerDelta, &m.LoserDelta, &m.Reason, &m.Rounds, &m.DurationMs, &m.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
