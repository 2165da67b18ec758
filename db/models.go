package db

import "time"

// PlayerRating is one row of the ratings table, keyed by player name.
type PlayerRating struct {
	Name         string    `json:"name" db:"name"`
	Rating       int       `json:"rating" db:"rating"`
	Peak         int       `json:"peak" db:"peak"`
	Games        int       `json:"games" db:"games"`
	Wins         int       `json:"wins" db:"wins"`
	Losses       int       `json:"losses" db:"losses"`
	WinStreak    int       `json:"win_streak" db:"win_streak"`
	BestStreak   int       `json:"best_streak" db:"best_streak"`
	LastPlayedAt time.Time `json:"last_played_at" db:"last_played_at"`
	LastDecayAt  time.Time `json:"last_decay_at" db:"last_decay_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// RankedMatch is the persisted record of one completed ranked match.
type RankedMatch struct {
	ID          int64     `json:"id" db:"id"`
	RoomID      string    `json:"room_id" db:"room_id"`
	Mode        string    `json:"mode" db:"mode"`
	Winner      string    `json:"winner" db:"winner"`
	Loser       string    `json:"loser" db:"loser"`
	WinnerDelta int       `json:"winner_delta" db:"winner_delta"`
	LoserDelta  int       `json:"loser_delta" db:"loser_delta"`
	Reason      string    `json:"reason" db:"reason"`
	Rounds      int       `json:"rounds" db:"rounds"`
	DurationMs  int64     `json:"duration_ms" db:"duration_ms"`
	PlayedAt    time.Time `json:"played_at" db:"played_at"`
}

// PuzzleSolve records one correct solution and how fast it came.
type PuzzleSolve struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	Cards       string    `json:"cards" db:"cards"`
	Solution    string    `json:"solution" db:"solution"`
	SolveTimeMs int64     `json:"solve_time_ms" db:"solve_time_ms"`
	SolvedAt    time.Time `json:"solved_at" db:"solved_at"`
}
