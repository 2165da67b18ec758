package game

import (
	"time"

	"github.com/twentyfour/arena-backend/internal/engine"
)

// Mode selects which ruleset a match runs under.
type Mode string

const (
	ModeClassic  Mode = "classic"
	ModeSuper    Mode = "super"
	ModeExtended Mode = "extended"
)

// ParseMode maps a wire string to a Mode, defaulting to classic.
func ParseMode(s string) Mode {
	switch Mode(s) {
	case ModeSuper:
		return ModeSuper
	case ModeExtended:
		return ModeExtended
	default:
		return ModeClassic
	}
}

// State is the match lifecycle position.
type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateSolving  State = "solving"
	StateRoundEnd State = "round_end"
	StateReplay   State = "replay"
	StateGameOver State = "game_over"
)

// Card is one playing card. The id is unique within a match for its whole
// lifetime; only Owner changes, on transfer between players.
type Card struct {
	ID    string `json:"id"`
	Value int    `json:"value"`
	Owner int    `json:"owner"` // seat index
}

// Player is one seat in a match. ConnID is empty while the player is
// disconnected; the seat itself survives disconnects for as long as a game
// is active.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	ConnID string `json:"-"`
	Deck   []Card `json:"deck"`
	Ready  bool   `json:"ready"`
	Points int    `json:"points"`
}

// Connected reports whether the seat currently has a live connection.
func (p *Player) Connected() bool { return p.ConnID != "" }

// Solution is a submitted answer: which center cards were claimed and the
// operation chain over their values.
type Solution struct {
	CardIDs    []string           `json:"card_ids"`
	Operations []engine.Operation `json:"operations"`
	Result     float64            `json:"result"`
}

// WinResult names the match winner and why the match ended.
type WinResult struct {
	WinnerID string `json:"winner_id"`
	Reason   string `json:"reason"`
}

// Win reasons.
const (
	ReasonNoCards          = "no_cards"
	ReasonOpponentAllCards = "opponent_all_cards"
	ReasonReachedPoints    = "reached_4_points"
	ReasonForfeit          = "forfeit"
	ReasonInsufficient     = "insufficient_cards"
)

// RoundOutcome describes how a round resolved.
type RoundOutcome struct {
	Round     int           `json:"round"`
	WinnerID  string        `json:"winner_id"`
	LoserID   string        `json:"loser_id"`
	Correct   bool          `json:"correct"`
	SolveTime time.Duration `json:"solve_time_ms"`
	Solution  *Solution     `json:"solution,omitempty"`
}

// Stats are per-match counters carried into the game-over event and the
// persisted match record.
type Stats struct {
	RoundsPlayed int            `json:"rounds_played"`
	Redeals      int            `json:"redeals"`
	FirstSolves  map[string]int `json:"first_solves"`
	Correct      map[string]int `json:"correct"`
	Incorrect    map[string]int `json:"incorrect"`
	FastestMs    int64          `json:"fastest_solve_ms"`
	StartedAt    time.Time      `json:"started_at"`
}

func newStats() Stats {
	return Stats{
		FirstSolves: make(map[string]int),
		Correct:     make(map[string]int),
		Incorrect:   make(map[string]int),
	}
}
